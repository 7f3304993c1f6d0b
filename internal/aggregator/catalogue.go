package aggregator

import (
	"sort"
	"strings"

	"github.com/shadowtrade/shadowbot/internal/config"
	"github.com/shadowtrade/shadowbot/internal/domain"
)

// BuildCatalogue converts the configured category tree into domain form and
// returns it with the flat, de-duplicated list of market addresses to poll.
func BuildCatalogue(cfgs []config.CategoryConfig) ([]domain.Category, []string) {
	cats := make([]domain.Category, 0, len(cfgs))
	seen := map[string]bool{}
	var addrs []string

	for _, c := range cfgs {
		cat := domain.Category{
			Slug:  c.Slug,
			Title: c.Title,
			Tag:   c.Tag,
			Rows:  make([]domain.MarketRow, 0, len(c.Rows)),
		}
		for _, r := range c.Rows {
			cat.Rows = append(cat.Rows, domain.MarketRow{
				Address: r.Address,
				Label:   r.Label,
				Target:  r.Target,
			})
			if !seen[r.Address] {
				seen[r.Address] = true
				addrs = append(addrs, r.Address)
			}
		}
		cats = append(cats, cat)
	}
	return cats, addrs
}

// FilterByTag returns the entries whose category tag matches. An empty tag
// returns the input unchanged. The input slice is never mutated.
func FilterByTag(entries []domain.CatalogueEntry, tag string) []domain.CatalogueEntry {
	if tag == "" {
		return entries
	}
	out := make([]domain.CatalogueEntry, 0, len(entries))
	for _, e := range entries {
		if strings.EqualFold(e.Tag, tag) {
			out = append(out, e)
		}
	}
	return out
}

// Search returns the entries whose label, target, or question contains the
// query, case-insensitively. An empty query returns the input unchanged.
func Search(entries []domain.CatalogueEntry, query string) []domain.CatalogueEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	out := make([]domain.CatalogueEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Row.Label), q) ||
			strings.Contains(strings.ToLower(e.Row.Target), q) ||
			strings.Contains(strings.ToLower(e.Snapshot.Market.Question), q) {
			out = append(out, e)
		}
	}
	return out
}

// SortByDeadline orders entries by their phase-relevant deadline, soonest
// first, with resolved markets last. Sorting is stable so configured row
// order breaks ties.
func SortByDeadline(entries []domain.CatalogueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Phase == domain.PhaseResolved) != (b.Phase == domain.PhaseResolved) {
			return b.Phase == domain.PhaseResolved
		}
		da := domain.ActiveDeadline(a.Phase, a.Snapshot.Market.CommitDeadline, a.Snapshot.Market.RevealDeadline)
		db := domain.ActiveDeadline(b.Phase, b.Snapshot.Market.CommitDeadline, b.Snapshot.Market.RevealDeadline)
		return da < db
	})
}

// YesProbability derives the implied probability of the YES outcome from the
// revealed-vote tally, as a rounded percentage. With nothing revealed yet
// there is no signal either way, so it reports an even 50.
func YesProbability(p domain.Pool) int {
	total := uint64(p.YesVotes) + uint64(p.NoVotes)
	if total == 0 {
		return 50
	}
	return int((uint64(p.YesVotes)*100 + total/2) / total)
}
