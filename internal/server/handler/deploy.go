package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxQuestionLen is the longest question that fits one felt-packed short
// string on-chain.
const maxQuestionLen = 31

// DeployHandler previews market deployment parameters. The daemon does not
// deploy contracts itself; this endpoint validates the window configuration
// and renders the constructor calldata an operator would pass to their
// deployment tooling.
type DeployHandler struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewDeployHandler creates a DeployHandler.
func NewDeployHandler(logger *slog.Logger) *DeployHandler {
	return &DeployHandler{logger: logger, now: time.Now}
}

type deployPreviewRequest struct {
	Question      string `json:"question"`
	CommitMinutes int64  `json:"commit_minutes"`
	RevealMinutes int64  `json:"reveal_minutes"` // counted from the commit deadline
}

type deployPreviewResponse struct {
	Question       string   `json:"question"`
	CommitDeadline int64    `json:"commit_deadline"`
	RevealDeadline int64    `json:"reveal_deadline"`
	Constructor    []string `json:"constructor_calldata"`
}

// Preview validates and renders deployment parameters.
// POST /api/deploy/preview
func (h *DeployHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req deployPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}
	if len(question) > maxQuestionLen {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("question exceeds %d characters and will not fit on-chain", maxQuestionLen))
		return
	}
	if req.CommitMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "commit window must be positive")
		return
	}
	// A zero-width reveal window is legal but useless; a negative one would
	// put the reveal deadline before the commit deadline, which no valid
	// market can have.
	if req.RevealMinutes < 0 {
		writeError(w, http.StatusBadRequest, "reveal window must not be negative")
		return
	}

	now := h.now().Unix()
	commitDeadline := now + req.CommitMinutes*60
	revealDeadline := commitDeadline + req.RevealMinutes*60

	writeJSON(w, http.StatusOK, deployPreviewResponse{
		Question:       question,
		CommitDeadline: commitDeadline,
		RevealDeadline: revealDeadline,
		Constructor: []string{
			"0x" + hexEncode(question),
			fmt.Sprintf("0x%x", commitDeadline),
			fmt.Sprintf("0x%x", revealDeadline),
		},
	})
}

// hexEncode renders an ASCII question as its felt short-string hex payload.
func hexEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, "%02x", s[i])
	}
	return b.String()
}
