package handler

import (
	"log/slog"
	"net/http"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// AccountHandler serves participant identity and stake-asset balance reads.
type AccountHandler struct {
	reader      domain.SettlementReader
	participant string
	stakeToken  string
	logger      *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(reader domain.SettlementReader, participant, stakeToken string, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		reader:      reader,
		participant: participant,
		stakeToken:  stakeToken,
		logger:      logger,
	}
}

// Balance returns the participant address and stake-asset balance.
// GET /api/account
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	if h.participant == "" {
		writeError(w, http.StatusNotFound, "no participant configured")
		return
	}

	bal, err := h.reader.BalanceOf(r.Context(), h.stakeToken, h.participant)
	if err != nil {
		h.logger.Error("balance read failed", "error", err)
		writeError(w, http.StatusBadGateway, "balance unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"participant": h.participant,
		"stake_token": h.stakeToken,
		"balance":     domain.FormatStake(bal),
	})
}
