package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFunc      = "skip/func/v1"
	DomainSignature = "skip/signature/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash canonically marshals v and hashes it under domain.
func ContentHash(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("content hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// SignatureKey returns a stable key for a signature.
// Two signatures have the same key if and only if they are Equal.
func SignatureKey(sig Signature) string {
	params := make([]any, len(sig.params))
	for i, p := range sig.params {
		params[i] = p.String()
	}
	key, err := ContentHash(DomainSignature, map[string]any{
		"params": params,
		"result": sig.result.String(),
	})
	if err != nil {
		// Only strings are marshaled above.
		panic(err)
	}
	return key
}
