// Package attestor is the only component with access to private key material.
// It produces raw detached signatures over canonical bundles and compact JWS
// decision certificates, and verifies both.
package attestor

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cicconel11/contramind-pilot/pkg/canonicalize"
)

// SignResult is the outcome of signing a canonical bundle.
type SignResult struct {
	SignatureB64 string `json:"signature_b64"`
	VerifyKeyB64 string `json:"public_key_b64"`
	DigestHex    string `json:"digest_hex"`
	Kid          string `json:"kid"`
}

// VerifyResult reports bundle signature verification.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Kid    string `json:"kid,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// JWSResult reports JWS verification, including the decoded payload when valid.
type JWSResult struct {
	Valid   bool            `json:"valid"`
	Kid     string          `json:"kid,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Service signs and verifies against a keyring.
type Service struct {
	keyring *Keyring
	logger  *slog.Logger
}

// NewService wraps a keyring.
func NewService(kr *Keyring, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{keyring: kr, logger: logger.With("component", "attestor")}
}

// Keyring exposes the public half of the keyring for listing endpoints.
func (s *Service) Keyring() *Keyring { return s.keyring }

// SignBundle canonicalizes bundle, signs the canonical bytes with the active
// key, and returns the signature plus the SHA-256 digest of those bytes.
func (s *Service) SignBundle(ctx context.Context, bundle interface{}) (SignResult, error) {
	canonical, err := canonicalize.JCS(bundle)
	if err != nil {
		return SignResult{}, err
	}
	k, err := s.keyring.active()
	if err != nil {
		return SignResult{}, err
	}
	sig := ed25519.Sign(k.priv, canonical)
	return SignResult{
		SignatureB64: base64.StdEncoding.EncodeToString(sig),
		VerifyKeyB64: base64.StdEncoding.EncodeToString(k.pub),
		DigestHex:    canonicalize.HashBytes(canonical),
		Kid:          k.kid,
	}, nil
}

// VerifyBundle recanonicalizes bundle and checks the signature with the named
// key (active key when kid is empty).
func (s *Service) VerifyBundle(ctx context.Context, bundle interface{}, signatureB64, kid string) (VerifyResult, error) {
	canonical, err := canonicalize.JCS(bundle)
	if err != nil {
		return VerifyResult{}, err
	}
	if kid == "" {
		kid = s.keyring.ActiveKid()
	}
	k, ok := s.keyring.lookup(kid)
	if !ok {
		return VerifyResult{Valid: false, Reason: "unknown_kid"}, nil
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return VerifyResult{Valid: false, Kid: kid, Reason: "bad_signature_encoding"}, nil
	}
	if !ed25519.Verify(k.pub, canonical, sig) {
		return VerifyResult{Valid: false, Kid: kid}, nil
	}
	return VerifyResult{Valid: true, Kid: kid}, nil
}

// SignJWS issues a compact JWS over the canonicalized payload with the active
// key. The segments are assembled by hand: RFC 7515 leaves serialization to
// the producer, and the certificate contract requires canonical JSON in both
// the protected header and the payload.
func (s *Service) SignJWS(ctx context.Context, payload interface{}) (kid, jws string, err error) {
	k, err := s.keyring.active()
	if err != nil {
		return "", "", err
	}
	header := map[string]string{"alg": "EdDSA", "kid": k.kid, "typ": "JWT"}
	headerC, err := canonicalize.JCS(header)
	if err != nil {
		return "", "", err
	}
	payloadC, err := canonicalize.JCS(payload)
	if err != nil {
		return "", "", err
	}
	signingInput := base64.RawURLEncoding.EncodeToString(headerC) + "." + base64.RawURLEncoding.EncodeToString(payloadC)
	sig := ed25519.Sign(k.priv, []byte(signingInput))
	return k.kid, signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifyJWS checks a compact JWS against the keyring. Malformed tokens, an
// unknown kid, or a bad signature all return Valid:false without payload.
func (s *Service) VerifyJWS(ctx context.Context, token string) (JWSResult, error) {
	if strings.Count(token, ".") != 2 {
		return JWSResult{Valid: false}, nil
	}
	var unknownKid bool
	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(jwt.WithValidMethods([]string{"EdDSA"})).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		k, ok := s.keyring.lookup(kid)
		if !ok {
			unknownKid = true
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return k.pub, nil
	})
	if err != nil || !parsed.Valid {
		res := JWSResult{Valid: false}
		if !unknownKid && parsed != nil {
			res.Kid, _ = parsed.Header["kid"].(string)
		}
		return res, nil
	}
	kid, _ := parsed.Header["kid"].(string)
	payload, err := json.Marshal(map[string]interface{}(claims))
	if err != nil {
		return JWSResult{}, err
	}
	return JWSResult{Valid: true, Kid: kid, Payload: payload}, nil
}
