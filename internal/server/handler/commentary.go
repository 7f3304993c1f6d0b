package handler

import (
	"log/slog"
	"net/http"

	"github.com/shadowtrade/shadowbot/internal/commentary"
)

// CommentaryHandler serves generated market commentary.
type CommentaryHandler struct {
	gen         *commentary.Generator
	liveMarkets func() int
	logger      *slog.Logger
}

// NewCommentaryHandler creates a CommentaryHandler. liveMarkets reports the
// current catalogue size for prompt context.
func NewCommentaryHandler(gen *commentary.Generator, liveMarkets func() int, logger *slog.Logger) *CommentaryHandler {
	return &CommentaryHandler{gen: gen, liveMarkets: liveMarkets, logger: logger}
}

// Get generates and returns one commentary note. The generator always
// degrades to a rule-based note, so this endpoint never fails outright.
// GET /api/commentary
func (h *CommentaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	note := h.gen.Generate(r.Context(), h.liveMarkets())
	writeJSON(w, http.StatusOK, note)
}
