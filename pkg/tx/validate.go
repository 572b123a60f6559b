package tx

import "fmt"

// Validate checks the envelope's shape before broadcast: TaPoS fields set,
// expiration present, at least one operation and one signature. It does
// not verify signatures or consult the chain.
func (env *Envelope) Validate() error {
	if env == nil {
		return fmt.Errorf("transaction is nil")
	}
	if env.RefBlockNum == 0 && env.RefBlockPrefix == 0 {
		return fmt.Errorf("transaction has no TaPoS reference")
	}
	if env.Expiration.IsZero() {
		return fmt.Errorf("transaction has no expiration")
	}
	if len(env.Operations) == 0 {
		return fmt.Errorf("transaction has no operations")
	}
	if len(env.Signatures) == 0 {
		return fmt.Errorf("transaction has no signatures")
	}
	for i, sig := range env.Signatures {
		if sig == "" {
			return fmt.Errorf("signature %d is empty", i)
		}
	}
	return nil
}
