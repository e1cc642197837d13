package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cicconel11/contramind-pilot/pkg/api"
	"github.com/cicconel11/contramind-pilot/pkg/contracts"
)

type decideBody struct {
	Amount    *float64 `json:"amount"`
	Country   string   `json:"country"`
	TS        string   `json:"ts"`
	Recent    int      `json:"recent"`
	ContextID string   `json:"context_id,omitempty"`
}

// Register mounts the decision endpoints on mux.
func (e *Engine) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /decide", e.handleDecide)
	mux.HandleFunc("GET /healthz", e.handleHealthz)
}

func (e *Engine) handleDecide(w http.ResponseWriter, r *http.Request) {
	var body decideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteBadRequest(w, "malformed JSON body")
		return
	}
	req, problem := validate(body)
	if problem != "" {
		api.WriteBadRequest(w, problem)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), RequestBudget)
	defer cancel()

	outcome, err := e.Decide(ctx, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		switch {
		case errors.Is(err, ErrAttestorUnavailable):
			api.WriteBadGateway(w, "attestor unavailable")
		case errors.Is(err, ErrParamsUnavailable):
			api.WriteBadGateway(w, "parameter store unavailable")
		default:
			e.logger.Error("decide failed", "error", err)
			api.WriteInternalError(w, "decision failed")
		}
		return
	}
	api.WriteRawJSON(w, http.StatusOK, outcome.Raw)
}

func (e *Engine) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := e.ledger.Ping(r.Context()); err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, "Service Unavailable", "backing store unreachable")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func validate(body decideBody) (contracts.DecideRequest, string) {
	if body.Amount == nil {
		return contracts.DecideRequest{}, "amount is required"
	}
	if *body.Amount <= 0 {
		return contracts.DecideRequest{}, "amount must be positive"
	}
	if len(body.Country) != 2 || body.Country[0] < 'A' || body.Country[0] > 'Z' || body.Country[1] < 'A' || body.Country[1] > 'Z' {
		return contracts.DecideRequest{}, "country must be an ISO-3166 alpha-2 code"
	}
	if body.TS == "" {
		return contracts.DecideRequest{}, "ts is required"
	}
	ts, err := time.Parse(time.RFC3339, body.TS)
	if err != nil {
		return contracts.DecideRequest{}, "ts must be an ISO-8601 timestamp"
	}
	if body.Recent < 0 {
		return contracts.DecideRequest{}, "recent must be non-negative"
	}
	return contracts.DecideRequest{
		Amount:    *body.Amount,
		Country:   body.Country,
		TS:        ts.UTC(),
		Recent:    body.Recent,
		ContextID: body.ContextID,
	}, ""
}
