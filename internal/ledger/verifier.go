package ledger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ProofRequest is what the encryption relayer attested to for one entry.
type ProofRequest struct {
	SeriesKey   string
	Participant Address
	Handle      Handle
	Proof       []byte
}

// ProofVerifier checks the validity proof that accompanies a confidential handle.
// It never decrypts the handle.
type ProofVerifier interface {
	Verify(ctx context.Context, req ProofRequest) error
}

// ProofVerifierFunc adapts a function to ProofVerifier.
type ProofVerifierFunc func(ctx context.Context, req ProofRequest) error

func (f ProofVerifierFunc) Verify(ctx context.Context, req ProofRequest) error { return f(ctx, req) }

// StructuralVerifier only rejects an all-zero handle or an empty proof.
// It is meant for local runs where no relayer is configured.
type StructuralVerifier struct{}

func (StructuralVerifier) Verify(_ context.Context, req ProofRequest) error {
	if req.Handle.IsZero() {
		return errors.New("empty handle")
	}
	if len(req.Proof) == 0 {
		return errors.New("empty proof")
	}
	return nil
}

// AttestationVerifier accepts proofs that are an HMAC-SHA256, keyed with the
// relayer secret, over "<ledgerID>\n<seriesKey>\n<participant>\n<handle hex>".
// The binding to ledger and participant stops a proof being replayed by someone else.
type AttestationVerifier struct {
	LedgerID string
	Key      []byte
}

// NewAttestationVerifier returns a verifier bound to ledgerID.
func NewAttestationVerifier(ledgerID string, key []byte) (*AttestationVerifier, error) {
	if len(key) == 0 {
		return nil, errors.New("attestation key not set")
	}
	return &AttestationVerifier{LedgerID: ledgerID, Key: key}, nil
}

// Sign produces the proof the relayer would hand to a participant.
func (v *AttestationVerifier) Sign(req ProofRequest) []byte {
	h := hmac.New(sha256.New, v.Key)
	fmt.Fprintf(h, "%s\n%s\n%s\n%s", v.LedgerID, req.SeriesKey, req.Participant, hex.EncodeToString(req.Handle[:]))
	return h.Sum(nil)
}

func (v *AttestationVerifier) Verify(_ context.Context, req ProofRequest) error {
	if req.Handle.IsZero() {
		return errors.New("empty handle")
	}
	if len(req.Proof) != sha256.Size {
		return fmt.Errorf("proof must be %d bytes, got %d", sha256.Size, len(req.Proof))
	}
	if !hmac.Equal(v.Sign(req), req.Proof) {
		return errors.New("attestation mismatch")
	}
	return nil
}
