package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shadowtrade/shadowbot/internal/aggregator"
	"github.com/shadowtrade/shadowbot/internal/domain"
)

// CatalogueHandler serves the market catalogue and per-market detail.
type CatalogueHandler struct {
	agg    *aggregator.Aggregator
	logger *slog.Logger
}

// NewCatalogueHandler creates a CatalogueHandler.
func NewCatalogueHandler(agg *aggregator.Aggregator, logger *slog.Logger) *CatalogueHandler {
	return &CatalogueHandler{agg: agg, logger: logger}
}

// entryDTO is the JSON shape of one catalogue entry. Stake amounts are
// decimal strings; base units do not survive float64 round trips.
type entryDTO struct {
	Category string `json:"category"`
	Tag      string `json:"tag"`
	Address  string `json:"address"`
	Label    string `json:"label"`
	Target   string `json:"target,omitempty"`

	Question       string       `json:"question"`
	Phase          domain.Phase `json:"phase"`
	YesPct         int          `json:"yes_pct"`
	TimeLeft       string       `json:"time_left"`
	CommitDeadline int64        `json:"commit_deadline"`
	RevealDeadline int64        `json:"reveal_deadline"`
	Resolved       bool         `json:"resolved"`
	Outcome        string       `json:"outcome,omitempty"`

	YesVotes uint32 `json:"yes_votes"`
	NoVotes  uint32 `json:"no_votes"`
	YesStake string `json:"yes_stake"`
	NoStake  string `json:"no_stake"`

	Position *positionDTO `json:"position,omitempty"`
}

type positionDTO struct {
	HasCommitted bool   `json:"has_committed"`
	HasRevealed  bool   `json:"has_revealed"`
	HasClaimed   bool   `json:"has_claimed"`
	Vote         string `json:"vote,omitempty"`
	Stake        string `json:"stake,omitempty"`
}

func toEntryDTO(e domain.CatalogueEntry) entryDTO {
	dto := entryDTO{
		Category:       e.Category,
		Tag:            e.Tag,
		Address:        e.Row.Address,
		Label:          e.Row.Label,
		Target:         e.Row.Target,
		Question:       e.Snapshot.Market.Question,
		Phase:          e.Phase,
		YesPct:         e.YesPct,
		TimeLeft:       e.TimeLeft,
		CommitDeadline: e.Snapshot.Market.CommitDeadline,
		RevealDeadline: e.Snapshot.Market.RevealDeadline,
		Resolved:       e.Snapshot.Market.Resolved,
		YesVotes:       e.Snapshot.Pool.YesVotes,
		NoVotes:        e.Snapshot.Pool.NoVotes,
		YesStake:       domain.FormatStake(e.Snapshot.Pool.YesStake),
		NoStake:        domain.FormatStake(e.Snapshot.Pool.NoStake),
	}
	if e.Snapshot.Market.Resolved {
		if e.Snapshot.Market.Outcome == domain.OutcomeYes {
			dto.Outcome = "yes"
		} else {
			dto.Outcome = "no"
		}
	}
	if pos := e.Snapshot.Position; pos != nil {
		p := &positionDTO{
			HasCommitted: pos.HasCommitted,
			HasRevealed:  pos.HasRevealed,
			HasClaimed:   pos.HasClaimed,
		}
		if pos.Vote.Valid() {
			p.Vote = pos.Vote.String()
		}
		if pos.Stake != nil && pos.Stake.Sign() > 0 {
			p.Stake = domain.FormatStake(pos.Stake)
		}
		dto.Position = p
	}
	return dto
}

// ListMarkets returns the full catalogue, optionally filtered by tag and
// search query and sorted by deadline.
// GET /api/markets?tag=btc&q=100k&sort=deadline
func (h *CatalogueHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	entries := h.agg.Entries(r.Context())
	entries = aggregator.FilterByTag(entries, r.URL.Query().Get("tag"))
	entries = aggregator.Search(entries, r.URL.Query().Get("q"))
	if r.URL.Query().Get("sort") == "deadline" {
		aggregator.SortByDeadline(entries)
	}

	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": out,
		"total":   len(out),
	})
}

// GetMarket returns one catalogue entry by market address.
// GET /api/markets/{address}
func (h *CatalogueHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	entry, err := h.agg.Entry(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not in catalogue")
			return
		}
		h.logger.Error("get market failed", "market", address, "error", err)
		writeError(w, http.StatusBadGateway, "market unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// Categories returns the configured category tree without snapshots.
// GET /api/categories
func (h *CatalogueHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": h.agg.Categories(),
	})
}
