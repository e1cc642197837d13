package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicconel11/contramind-pilot/pkg/attestor"
	"github.com/cicconel11/contramind-pilot/pkg/contracts"
	"github.com/cicconel11/contramind-pilot/pkg/ledger"
	"github.com/cicconel11/contramind-pilot/pkg/params"
)

func decideMux(t *testing.T, o *stubOracle) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	newFixture(t, o).engine.Register(mux)
	return mux
}

func postDecide(t *testing.T, mux *http.ServeMux, body, idemKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/decide", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"amount":100,"country":"US","ts":"2025-09-01T10:00:00Z","recent":0}`

func TestHandleDecideOK(t *testing.T) {
	rec := postDecide(t, decideMux(t, &stubOracle{}), validBody, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res contracts.DecisionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, contracts.DecisionPass, res.Decision)
	assert.NotEmpty(t, res.ProofID)
	assert.NotEmpty(t, res.CertificateJWS)
}

func TestHandleDecideIdempotentResponsesAreByteIdentical(t *testing.T) {
	mux := decideMux(t, &stubOracle{})
	first := postDecide(t, mux, validBody, "k1")
	second := postDecide(t, mux, validBody, "k1")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestHandleDecideValidation(t *testing.T) {
	mux := decideMux(t, &stubOracle{})
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing amount", `{"country":"US","ts":"2025-09-01T10:00:00Z","recent":0}`},
		{"negative amount", `{"amount":-5,"country":"US","ts":"2025-09-01T10:00:00Z","recent":0}`},
		{"zero amount", `{"amount":0,"country":"US","ts":"2025-09-01T10:00:00Z","recent":0}`},
		{"bad country", `{"amount":100,"country":"usa","ts":"2025-09-01T10:00:00Z","recent":0}`},
		{"missing ts", `{"amount":100,"country":"US","recent":0}`},
		{"bad ts", `{"amount":100,"country":"US","ts":"yesterday","recent":0}`},
		{"negative recent", `{"amount":100,"country":"US","ts":"2025-09-01T10:00:00Z","recent":-1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postDecide(t, mux, tc.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

// failingAttestor simulates a signer outage.
type failingAttestor struct{}

func (failingAttestor) SignBundle(ctx context.Context, bundle interface{}) (attestor.SignResult, error) {
	return attestor.SignResult{}, errors.New("keyring sealed")
}

func (failingAttestor) SignJWS(ctx context.Context, payload interface{}) (string, string, error) {
	return "", "", errors.New("keyring sealed")
}

func TestHandleDecideAttestorDown(t *testing.T) {
	store, err := params.NewMemoryStore(nil, nil)
	require.NoError(t, err)
	eng := New(store, ledger.NewMemoryStore(), failingAttestor{}, &stubOracle{}, nil)

	mux := http.NewServeMux()
	eng.Register(mux)
	rec := postDecide(t, mux, validBody, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	mux := decideMux(t, &stubOracle{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["ok"])
}
