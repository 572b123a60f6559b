package tx

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// Chain operation ids for the binary signing serialization. These numbers
// are protocol constants and must not change.
var opCodes = map[string]uint64{
	"vote":                    0,
	"comment":                 1,
	"transfer":                2,
	"transfer_to_vesting":     3,
	"withdraw_vesting":        4,
	"account_create":          9,
	"account_update":          10,
	"account_witness_vote":    12,
	"account_witness_proxy":   13,
	"custom_json":             18,
	"delegate_vesting_shares": 40,
}

// encoder accumulates the canonical binary form of a transaction.
type encoder struct {
	buf bytes.Buffer
	err error
}

func (e *encoder) writeBytes(b []byte) {
	if e.err != nil {
		return
	}
	e.buf.Write(b)
}

func (e *encoder) writeByte(b byte) {
	if e.err != nil {
		return
	}
	e.buf.WriteByte(b)
}

func (e *encoder) writeUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.writeBytes(b[:])
}

func (e *encoder) writeUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.writeBytes(b[:])
}

func (e *encoder) writeInt16(v int16) {
	e.writeUint16(uint16(v))
}

func (e *encoder) writeInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.writeBytes(b[:])
}

func (e *encoder) writeUvarint(v uint64) {
	if e.err != nil {
		return
	}
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	e.buf.Write(b[:n])
}

func (e *encoder) writeString(s string) {
	e.writeUvarint(uint64(len(s)))
	e.writeBytes([]byte(s))
}

func (e *encoder) writeBool(v bool) {
	if v {
		e.writeByte(1)
	} else {
		e.writeByte(0)
	}
}

// writeAsset encodes "amount SYMBOL": int64 base units, precision byte,
// 7-byte zero-padded symbol name.
func (e *encoder) writeAsset(s string) {
	amount, precision, symbol, err := parseAsset(s)
	if err != nil {
		e.fail(err)
		return
	}
	e.writeInt64(amount)
	e.writeByte(precision)
	var name [7]byte
	copy(name[:], symbol)
	e.writeBytes(name[:])
}

// writePubKey encodes a prefixed public key string as 33 raw bytes.
func (e *encoder) writePubKey(s string) {
	pub, err := keys.ParsePublicKey(s)
	if err != nil {
		e.fail(fmt.Errorf("serialize public key: %w", err))
		return
	}
	e.writeBytes(pub.Serialize())
}

func (e *encoder) writeAuthority(a keys.Authority) {
	e.writeUint32(a.WeightThreshold)
	e.writeUvarint(uint64(len(a.AccountAuths)))
	for _, aa := range a.AccountAuths {
		e.writeString(aa.Account)
		e.writeUint16(aa.Weight)
	}
	e.writeUvarint(uint64(len(a.KeyAuths)))
	for _, ka := range a.KeyAuths {
		e.writePubKey(ka.PubKey)
		e.writeUint16(ka.Weight)
	}
}

// writeOptionalAuthority encodes the presence byte + authority used by
// account_update.
func (e *encoder) writeOptionalAuthority(a *keys.Authority) {
	if a == nil {
		e.writeByte(0)
		return
	}
	e.writeByte(1)
	e.writeAuthority(*a)
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// writeOperation encodes one operation: varint op id + fields.
func (e *encoder) writeOperation(op Operation) {
	code, ok := opCodes[op.Type()]
	if !ok {
		e.fail(fmt.Errorf("no binary encoding for operation %q", op.Type()))
		return
	}
	e.writeUvarint(code)

	switch o := op.(type) {
	case *Vote:
		e.writeString(o.Voter)
		e.writeString(o.Author)
		e.writeString(o.Permlink)
		e.writeInt16(o.Weight)
	case *Comment:
		e.writeString(o.ParentAuthor)
		e.writeString(o.ParentPermlink)
		e.writeString(o.Author)
		e.writeString(o.Permlink)
		e.writeString(o.Title)
		e.writeString(o.Body)
		e.writeString(o.JSONMetadata)
	case *Transfer:
		e.writeString(o.From)
		e.writeString(o.To)
		e.writeAsset(o.Amount)
		e.writeString(o.Memo)
	case *TransferToVesting:
		e.writeString(o.From)
		e.writeString(o.To)
		e.writeAsset(o.Amount)
	case *WithdrawVesting:
		e.writeString(o.Account)
		e.writeAsset(o.VestingShares)
	case *DelegateVestingShares:
		e.writeString(o.Delegator)
		e.writeString(o.Delegatee)
		e.writeAsset(o.VestingShares)
	case *AccountCreate:
		e.writeAsset(o.Fee)
		e.writeString(o.Creator)
		e.writeString(o.NewAccountName)
		e.writeAuthority(o.Owner)
		e.writeAuthority(o.Active)
		e.writeAuthority(o.Posting)
		e.writePubKey(o.MemoKey)
		e.writeString(o.JSONMetadata)
	case *AccountUpdate:
		e.writeString(o.Account)
		e.writeOptionalAuthority(o.Owner)
		e.writeOptionalAuthority(o.Active)
		e.writeOptionalAuthority(o.Posting)
		e.writePubKey(o.MemoKey)
		e.writeString(o.JSONMetadata)
	case *AccountWitnessVote:
		e.writeString(o.Account)
		e.writeString(o.Witness)
		e.writeBool(o.Approve)
	case *AccountWitnessProxy:
		e.writeString(o.Account)
		e.writeString(o.Proxy)
	case *CustomJSON:
		e.writeUvarint(uint64(len(o.RequiredAuths)))
		for _, a := range o.RequiredAuths {
			e.writeString(a)
		}
		e.writeUvarint(uint64(len(o.RequiredPostingAuths)))
		for _, a := range o.RequiredPostingAuths {
			e.writeString(a)
		}
		e.writeString(o.ID)
		e.writeString(o.JSON)
	default:
		e.fail(fmt.Errorf("no binary encoding for operation %T", op))
	}
}

// Serialize returns the canonical binary form of the envelope (without
// signatures), as hashed for signing.
func (env *Envelope) Serialize() ([]byte, error) {
	var e encoder
	e.writeUint16(env.RefBlockNum)
	e.writeUint32(env.RefBlockPrefix)
	e.writeUint32(uint32(env.Expiration.Unix()))
	e.writeUvarint(uint64(len(env.Operations)))
	for _, op := range env.Operations {
		e.writeOperation(op)
	}
	// Extensions are unused; encoded as an empty set.
	e.writeUvarint(0)

	if e.err != nil {
		return nil, e.err
	}
	return e.buf.Bytes(), nil
}
