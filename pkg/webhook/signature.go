package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Signature header names. Both carry the same HMAC-SHA256 digest over
// the exact serialized body: X-Signature holds the bare hex,
// X-Signature-256 the GitHub-style "sha256=<hex>" form. Receivers may
// verify either.
const (
	HeaderSignature    = "X-Signature"
	HeaderSignature256 = "X-Signature-256"
)

// Sign computes the hex HMAC-SHA256 of payload under secret. The
// payload must be the exact bytes sent on the wire; re-serializing on
// either side breaks verification.
func Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SignatureHeaders returns both signature headers for a payload.
func SignatureHeaders(secret string, payload []byte) (map[string]string, error) {
	sig, err := Sign(secret, payload)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderSignature:    sig,
		HeaderSignature256: "sha256=" + sig,
	}, nil
}

// Verify checks a provided signature against the payload in constant
// time. The provided value may be bare hex or "sha256=<hex>".
func Verify(secret string, payload []byte, provided string) error {
	if provided == "" {
		return ErrInvalidSignature
	}
	provided = strings.TrimPrefix(provided, "sha256=")

	expected, err := Sign(secret, payload)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrInvalidSignature
	}
	return nil
}

// ExtractSignature pulls the signature from inbound request headers,
// preferring the sha256-prefixed form.
func ExtractSignature(header http.Header) string {
	if v := header.Get(HeaderSignature256); v != "" {
		return v
	}
	return header.Get(HeaderSignature)
}

// VerifyRequest verifies an inbound request body against its signature
// headers. A missing signature rejects the payload outright.
func VerifyRequest(secret string, payload []byte, header http.Header) error {
	return Verify(secret, payload, ExtractSignature(header))
}
