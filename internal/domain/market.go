package domain

import (
	"math/big"
	"time"
)

// Vote is the choice a participant hides inside a commitment. The zero value
// means "no vote" and is never a valid choice; the on-chain engine encodes
// YES as 1 and NO as 2 so an unset storage slot can't be mistaken for a vote.
type Vote uint8

const (
	VoteNone Vote = 0
	VoteYes  Vote = 1
	VoteNo   Vote = 2
)

// Valid reports whether v is one of the two committable sentinel values.
func (v Vote) Valid() bool {
	return v == VoteYes || v == VoteNo
}

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	default:
		return "none"
	}
}

// Outcome is the resolved result of a market. The settlement engine stores it
// as a u8 where 0 doubles as "unresolved"; it is only meaningful once
// Market.Resolved is true.
type Outcome uint8

const (
	OutcomeNo  Outcome = 0
	OutcomeYes Outcome = 1
)

// Market is the client-side view of one deployed ShadowTrade market contract.
// The settlement engine owns the authoritative state; this is a read-through
// snapshot whose freshness is bounded by the poll interval.
type Market struct {
	Address        string  // contract address, stable identity
	Question       string  // decoded on-chain short string
	CommitDeadline int64   // epoch seconds; 0 until metadata is loaded
	RevealDeadline int64   // epoch seconds; >= CommitDeadline for valid markets
	Resolved       bool
	Outcome        Outcome
}

// Pool holds the revealed-vote tallies for a market. Committed-but-unrevealed
// stakes are not included; counts only grow as reveals land.
type Pool struct {
	YesVotes uint32
	NoVotes  uint32
	YesStake *big.Int // fixed-point, 1e18 per whole stake unit
	NoStake  *big.Int
}

// UserPosition is the per-(market, participant) protocol progression. The
// three flags are separate irreversible transitions: claimed requires
// revealed requires committed.
type UserPosition struct {
	HasCommitted bool
	HasRevealed  bool
	HasClaimed   bool
	Vote         Vote     // set once revealed
	Stake        *big.Int // set once committed
}

// Snapshot bundles the three point-in-time reads for one market. The reads
// are not atomic with respect to each other; Pool can be one ledger step
// ahead of Market and vice versa.
type Snapshot struct {
	Market    Market
	Pool      Pool
	Position  *UserPosition // nil when no participant identity was supplied
	FetchedAt time.Time
}

// MarketRow is one outcome row inside a category: a single deployed market
// plus its display metadata.
type MarketRow struct {
	Address string
	Label   string // e.g. "BTC > $100k"
	Target  string // e.g. "$100,000"
}

// Category is a named cluster of related markets, e.g. several BTC
// price-threshold markets under one theme. A plain yes/no market is simply a
// one-row category; the price ladder is the multi-row case.
type Category struct {
	Slug  string
	Title string
	Tag   string
	Rows  []MarketRow
}

// CatalogueEntry is one market of one category joined with its latest
// snapshot and the projections derived from it.
type CatalogueEntry struct {
	Category string // category slug
	Tag      string
	Row      MarketRow
	Snapshot Snapshot
	Phase    Phase
	YesPct   int    // derived yes-probability, 0..100
	TimeLeft string // countdown for the phase-relevant deadline
}
