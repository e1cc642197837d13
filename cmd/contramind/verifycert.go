package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultKeysURL = "http://localhost:8080/keys"

type keysResponse struct {
	Active string            `json:"active"`
	Keys   map[string]string `json:"keys"`
}

// runVerifyCert verifies a decision certificate offline: it fetches the
// published verify keys once, then checks the JWS locally.
func runVerifyCert(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "usage: contramind verify-cert <jws> [keys-url]")
		return 2
	}
	token := args[0]
	keysURL := defaultKeysURL
	if len(args) > 1 {
		keysURL = args[1]
	}

	keys, err := fetchKeys(keysURL)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "contramind verify-cert: %v\n", err)
		return 1
	}

	payload, kid, err := verifyCertificate(token, keys)
	if err != nil {
		_, _ = fmt.Fprintf(stdout, "INVALID: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "VALID (kid=%s)\n%s\n", kid, payload)
	return 0
}

func fetchKeys(url string) (*keysResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch keys: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch keys: status %d", resp.StatusCode)
	}
	var keys keysResponse
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("fetch keys: %w", err)
	}
	if len(keys.Keys) == 0 {
		return nil, fmt.Errorf("fetch keys: empty keyring")
	}
	return &keys, nil
}

func verifyCertificate(token string, keys *keysResponse) (payload []byte, kid string, err error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"EdDSA"}))
	claims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		k, _ := t.Header["kid"].(string)
		b64, ok := keys.Keys[k]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", k)
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("kid %q: bad verify key: %w", k, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("kid %q: verify key is not ed25519", k)
		}
		return ed25519.PublicKey(raw), nil
	})
	if err != nil {
		return nil, "", err
	}
	kid, _ = parsed.Header["kid"].(string)
	out, err := json.MarshalIndent(map[string]interface{}(claims), "", "  ")
	if err != nil {
		return nil, "", err
	}
	return out, kid, nil
}
