package domain

import "fmt"

// Phase is the protocol state of a market, derived purely from wall-clock
// time and the two deadlines. It is recomputed on every tick and never cached
// beyond one tick.
type Phase string

const (
	PhasePending            Phase = "pending" // metadata not loaded yet
	PhaseCommit             Phase = "commit"
	PhaseReveal             Phase = "reveal"
	PhaseAwaitingResolution Phase = "awaiting_resolution"
	PhaseResolved           Phase = "resolved"
)

// ResolvePhase derives the current phase for a market. Rules apply in
// priority order:
//
//  1. commitDeadline == 0 means the market metadata has not loaded: Pending.
//  2. now <= commitDeadline: Commit.
//  3. now <= revealDeadline: Reveal.
//  4. resolved: Resolved.
//  5. otherwise: AwaitingResolution.
//
// commitDeadline == revealDeadline is a legal degenerate configuration in
// which the reveal window has zero width; nobody can reveal but the phase
// sequence is still well defined.
func ResolvePhase(now, commitDeadline, revealDeadline int64, resolved bool) Phase {
	switch {
	case commitDeadline == 0:
		return PhasePending
	case now <= commitDeadline:
		return PhaseCommit
	case now <= revealDeadline:
		return PhaseReveal
	case resolved:
		return PhaseResolved
	default:
		return PhaseAwaitingResolution
	}
}

// ActiveDeadline returns the deadline the given phase counts down to, or 0
// when the phase has no countdown.
func ActiveDeadline(phase Phase, commitDeadline, revealDeadline int64) int64 {
	switch phase {
	case PhaseCommit:
		return commitDeadline
	case PhaseReveal:
		return revealDeadline
	default:
		return 0
	}
}

// TimeLeft formats the remaining time until deadline as a compact countdown
// string. It is a stateless projection of (deadline, now); displays call it
// on every clock tick rather than maintaining their own timers.
func TimeLeft(deadline, now int64) string {
	diff := deadline - now
	if diff <= 0 {
		return "Ended"
	}
	days := diff / 86400
	hrs := (diff % 86400) / 3600
	mins := (diff % 3600) / 60
	secs := diff % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hrs)
	case hrs > 0:
		return fmt.Sprintf("%dh %dm", hrs, mins)
	default:
		return fmt.Sprintf("%dm %02ds", mins, secs)
	}
}
