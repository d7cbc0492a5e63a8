package txcodec

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the oracle's secp256k1 key. Signatures are RFC 6979
// deterministic: signing the same envelope twice yields identical bytes.
type Signer struct {
	key *ecdsa.PrivateKey
	id  string
}

// NewSigner parses a hex-encoded secp256k1 private key.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{key: key, id: IdentityFromPub(&key.PublicKey)}, nil
}

// Identity returns the ledger identity derived from the signer's public key.
func (s *Signer) Identity() string { return s.id }

// Sign produces the signed envelope. The digest covers the canonical byte
// serialization of every field; no nonce or timestamp is mixed in.
func (s *Signer) Sign(env Envelope) (SignedEnvelope, error) {
	sig, err := crypto.Sign(envelopeDigest(env), s.key)
	if err != nil {
		return SignedEnvelope{}, fmt.Errorf("sign envelope: %w", err)
	}
	return SignedEnvelope{Envelope: env, Signature: sig}, nil
}

// VerifyEnvelope recovers the signing key and checks it matches the claimed
// source identity. The ledger derives the caller from this, never from the
// unauthenticated SourceID field alone.
func VerifyEnvelope(se SignedEnvelope) (string, error) {
	if len(se.Signature) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(se.Signature))
	}
	pub, err := crypto.SigToPub(envelopeDigest(se.Envelope), se.Signature)
	if err != nil {
		return "", fmt.Errorf("recover signer: %w", err)
	}
	id := IdentityFromPub(pub)
	if id != se.SourceID {
		return "", fmt.Errorf("signature by %s does not match source %s", id, se.SourceID)
	}
	return id, nil
}

// IdentityFromPub derives a 60-character ledger identity from a public key:
// lowercase hex of keccak256(pubkey)[2:32].
func IdentityFromPub(pub *ecdsa.PublicKey) string {
	digest := crypto.Keccak256(crypto.FromECDSAPub(pub)[1:])
	return hex.EncodeToString(digest[2:32])
}

// TxID names a signed envelope by content: keccak256 over canonical bytes
// and signature. Stable for a given signed envelope, distinct per attempt
// because the target checkpoint differs.
func TxID(se SignedEnvelope) string {
	return hex.EncodeToString(crypto.Keccak256(CanonicalBytes(se.Envelope), se.Signature))
}

func envelopeDigest(env Envelope) []byte {
	return crypto.Keccak256(CanonicalBytes(env))
}
