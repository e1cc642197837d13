package attestor

import (
	"encoding/json"
	"net/http"

	"github.com/cicconel11/contramind-pilot/pkg/api"
)

type signRequest struct {
	Bundle json.RawMessage `json:"bundle"`
}

type verifyRequest struct {
	Bundle       json.RawMessage `json:"bundle"`
	SignatureB64 string          `json:"signature_b64"`
	Kid          string          `json:"kid,omitempty"`
}

type signJWSRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type verifyJWSRequest struct {
	JWS string `json:"jws"`
}

// Register mounts the attestor HTTP surface on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /keys", s.handleKeys)
	mux.HandleFunc("GET /pubkey", s.handlePubkey)
	mux.HandleFunc("POST /sign", s.handleSign)
	mux.HandleFunc("POST /verify", s.handleVerify)
	mux.HandleFunc("POST /sign_jws", s.handleSignJWS)
	mux.HandleFunc("POST /verify_jws", s.handleVerifyJWS)
}

func (s *Service) handleKeys(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"active": s.keyring.ActiveKid(),
		"keys":   s.keyring.PublicKeys(),
	})
}

func (s *Service) handlePubkey(w http.ResponseWriter, r *http.Request) {
	pub, ok := s.keyring.PublicKey(s.keyring.ActiveKid())
	if !ok {
		api.WriteError(w, http.StatusInternalServerError, "Internal Error", "no active key")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"public_key_b64": pub})
}

func (s *Service) handleSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Bundle) == 0 {
		api.WriteBadRequest(w, "body must be {\"bundle\": {...}}")
		return
	}
	res, err := s.SignBundle(r.Context(), req.Bundle)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

func (s *Service) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Bundle) == 0 {
		api.WriteBadRequest(w, "body must be {\"bundle\": {...}, \"signature_b64\": \"...\"}")
		return
	}
	res, err := s.VerifyBundle(r.Context(), req.Bundle, req.SignatureB64, req.Kid)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

func (s *Service) handleSignJWS(w http.ResponseWriter, r *http.Request) {
	var req signJWSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Payload) == 0 {
		api.WriteBadRequest(w, "body must be {\"payload\": {...}}")
		return
	}
	kid, token, err := s.SignJWS(r.Context(), req.Payload)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"kid": kid, "jws": token})
}

func (s *Service) handleVerifyJWS(w http.ResponseWriter, r *http.Request) {
	var req verifyJWSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JWS == "" {
		api.WriteBadRequest(w, "body must be {\"jws\": \"...\"}")
		return
	}
	res, err := s.VerifyJWS(r.Context(), req.JWS)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Internal Error", err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}
