package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shadowtrade/shadowbot/internal/domain"
	"github.com/shadowtrade/shadowbot/internal/orchestrator"
)

// ActionHandler exposes the orchestrated write surface: commit, reveal, claim,
// and the attempt history.
type ActionHandler struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(orch *orchestrator.Orchestrator, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{orch: orch, logger: logger}
}

type commitRequest struct {
	Vote  string `json:"vote"`  // "yes" or "no"
	Stake string `json:"stake"` // decimal stake units, e.g. "0.0005"
}

type actionResponse struct {
	ID     string              `json:"id"`
	Kind   domain.ActionKind   `json:"kind"`
	Status domain.ActionStatus `json:"status"`
	TxHash string              `json:"tx_hash,omitempty"`
	Detail string              `json:"detail,omitempty"`
}

func toActionResponse(rec domain.ActionRecord) actionResponse {
	return actionResponse{
		ID:     rec.ID,
		Kind:   rec.Kind,
		Status: rec.Status,
		TxHash: rec.TxHash,
		Detail: rec.Detail,
	}
}

// Commit submits a commitment for the given market.
// POST /api/markets/{address}/commit
func (h *ActionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var vote domain.Vote
	switch req.Vote {
	case "yes":
		vote = domain.VoteYes
	case "no":
		vote = domain.VoteNo
	default:
		writeError(w, http.StatusBadRequest, `vote must be "yes" or "no"`)
		return
	}

	stake, err := domain.ParseStake(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.orch.Commit(r.Context(), address, vote, stake)
	h.respond(w, rec, err)
}

// Reveal opens the participant's commitment on the given market.
// POST /api/markets/{address}/reveal
func (h *ActionHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orch.Reveal(r.Context(), pathParam(r, "address"))
	h.respond(w, rec, err)
}

// Claim collects winnings from the given resolved market.
// POST /api/markets/{address}/claim
func (h *ActionHandler) Claim(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orch.Claim(r.Context(), pathParam(r, "address"))
	h.respond(w, rec, err)
}

// History lists the participant's recent attempts.
// GET /api/actions
func (h *ActionHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.orch.History(r.Context(), parseLimit(r, 50))
	if err != nil {
		h.logger.Error("history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	out := make([]domain.ActionRecord, 0, len(records))
	out = append(out, records...)
	writeJSON(w, http.StatusOK, map[string]any{
		"actions": out,
		"total":   len(out),
	})
}

// respond maps orchestrator outcomes onto HTTP statuses. Benign already-done
// results are a success; phase and precondition failures are client errors;
// engine-side failures are gateway errors.
func (h *ActionHandler) respond(w http.ResponseWriter, rec domain.ActionRecord, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, toActionResponse(rec))
		return
	}

	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrStalePhase),
		errors.Is(err, domain.ErrSecretMissing),
		errors.Is(err, domain.ErrInvalidSecret):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRemoteRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPartialBatchFailure):
		// Surfaced loudly: the approval may be stranded on-chain.
		status = http.StatusBadGateway
	}

	h.logger.Warn("action failed",
		"action", rec.ID,
		"kind", rec.Kind,
		"market", rec.Market,
		"status", rec.Status,
		"error", err,
	)
	resp := toActionResponse(rec)
	writeJSON(w, status, map[string]any{
		"action": resp,
		"error":  err.Error(),
	})
}
