package notify

import (
	"fmt"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// Event types emitted by the orchestrator and aggregator. The notify.events
// config key filters against these names.
const (
	EventCommitSubmitted = "commit_submitted"
	EventRevealSubmitted = "reveal_submitted"
	EventClaimSubmitted  = "claim_submitted"
	EventActionFailed    = "action_failed"
	EventMarketResolved  = "market_resolved"
)

// ActionEvent maps an orchestrator attempt to its notification event type.
func ActionEvent(rec domain.ActionRecord) string {
	if rec.Status == domain.ActionStatusFailed || rec.Status == domain.ActionStatusPartial {
		return EventActionFailed
	}
	switch rec.Kind {
	case domain.ActionCommit:
		return EventCommitSubmitted
	case domain.ActionReveal:
		return EventRevealSubmitted
	case domain.ActionClaim:
		return EventClaimSubmitted
	default:
		return EventActionFailed
	}
}

// ActionMessage renders an attempt as a (title, message) pair for the
// configured channels.
func ActionMessage(rec domain.ActionRecord) (title, message string) {
	title = fmt.Sprintf("ShadowTrade %s %s", rec.Kind, rec.Status)
	message = fmt.Sprintf("market: %s", rec.Market)
	if rec.TxHash != "" {
		message += fmt.Sprintf("\ntx: %s", rec.TxHash)
	}
	if rec.Detail != "" {
		message += fmt.Sprintf("\n%s", rec.Detail)
	}
	return title, message
}
