package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ettaverse/etta-keychain-sub001/config"
	"github.com/ettaverse/etta-keychain-sub001/internal/dispatch"
	klog "github.com/ettaverse/etta-keychain-sub001/internal/log"
	"github.com/ettaverse/etta-keychain-sub001/internal/session"
	"github.com/ettaverse/etta-keychain-sub001/internal/vault"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// server exposes the dispatcher over a local HTTP endpoint.
type server struct {
	addr       string
	dispatcher *dispatch.Dispatcher
	session    *session.Store
	vault      *vault.Store
	httpSrv    *http.Server
	ln         net.Listener
	logger     zerolog.Logger
}

func newServer(cfg *config.Config, d *dispatch.Dispatcher, sess *session.Store, v *vault.Store) *server {
	s := &server{
		addr:       cfg.Listen.ListenAddr(),
		dispatcher: d,
		session:    sess,
		vault:      v,
		logger:     klog.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/keychain", s.handleKeychain)
	mux.HandleFunc("/unlock", s.handleUnlock)
	mux.HandleFunc("/lock", s.handleLock)
	mux.HandleFunc("/status", s.handleStatus)

	s.httpSrv = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Broadcast confirmation polling can hold a request open for a while.
		WriteTimeout: 2 * time.Minute,
	}

	return s
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST method is allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if len(body) > maxBodySize {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleKeychain routes one dispatcher request. The dispatcher always
// produces a well-formed response, so the HTTP status is always 200.
func (s *server) handleKeychain(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.dispatcher.Handle(body))
}

type unlockRequest struct {
	Password string `json:"password"`
}

type statusResponse struct {
	Unlocked bool     `json:"unlocked"`
	Accounts []string `json:"accounts,omitempty"`
}

// handleUnlock stores the vault password for the session. When a vault
// blob already exists the password is verified against it first.
func (s *server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req unlockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, map[string]interface{}{"success": false, "error": "invalid JSON"})
		return
	}
	if req.Password == "" {
		writeJSON(w, map[string]interface{}{"success": false, "error": "password is required"})
		return
	}

	valid, err := s.vault.CheckPassword(req.Password)
	if err != nil {
		writeJSON(w, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	if !valid {
		writeJSON(w, map[string]interface{}{"success": false, "error": "invalid password"})
		return
	}

	s.session.Set(req.Password)
	s.logger.Info().Msg("keychain unlocked")
	writeJSON(w, map[string]interface{}{"success": true})
}

// handleLock clears the session password.
func (s *server) handleLock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}
	s.session.Clear()
	s.logger.Info().Msg("keychain locked")
	writeJSON(w, map[string]interface{}{"success": true})
}

// handleStatus reports whether the keychain is unlocked and, when it is,
// the stored account names.
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Unlocked: s.session.Unlocked()}
	if pw, ok := s.session.Get(); ok {
		names, err := s.vault.AccountNames(pw)
		if err == nil {
			resp.Accounts = names
		}
	}
	writeJSON(w, resp)
}
