package commentary

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// fallbackPrice anchors the rule-based note when the price feed is also down.
const fallbackPrice = 97_420.0

// PriceFeed supplies the live BTC spot price.
type PriceFeed interface {
	BTCPriceUSD(ctx context.Context) (float64, error)
}

// Completer turns a prompt into a short completion. Nil disables the model
// path and the generator falls straight through to the rule-based note.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Note is one generated commentary entry.
type Note struct {
	Text      string    `json:"text"`
	BTCPrice  float64   `json:"btc_price"`
	Generated bool      `json:"generated"` // false when the rule-based fallback produced the text
	CreatedAt time.Time `json:"created_at"`
}

// Generator composes market notes. Every failure degrades one step: no model
// means rule-based text, no price feed means the anchor price. The caller
// always gets a note.
type Generator struct {
	feed      PriceFeed
	completer Completer
	logger    *slog.Logger
}

// NewGenerator creates a Generator. completer may be nil.
func NewGenerator(feed PriceFeed, completer Completer, logger *slog.Logger) *Generator {
	return &Generator{
		feed:      feed,
		completer: completer,
		logger:    logger.With("component", "commentary"),
	}
}

// Generate produces one note for the given number of live markets.
func (g *Generator) Generate(ctx context.Context, liveMarkets int) Note {
	price, err := g.feed.BTCPriceUSD(ctx)
	if err != nil {
		g.logger.Warn("price feed unavailable, using anchor price", "error", err)
		price = fallbackPrice
	}

	if g.completer != nil {
		text, err := g.completer.Complete(ctx, buildPrompt(price, liveMarkets))
		if err == nil {
			return Note{Text: strings.TrimSpace(text), BTCPrice: price, Generated: true, CreatedAt: time.Now().UTC()}
		}
		g.logger.Warn("completion failed, using rule-based note", "error", err)
	}

	return Note{Text: FallbackNote(price), BTCPrice: price, Generated: false, CreatedAt: time.Now().UTC()}
}

// buildPrompt renders the desk-trader prompt with live price context.
func buildPrompt(price float64, liveMarkets int) string {
	pct100 := (price/100_000 - 1) * 100
	pct110 := (price/110_000 - 1) * 100
	pct120 := (price/120_000 - 1) * 100
	return fmt.Sprintf(
		"Crypto analyst for ShadowTrade, a privacy-first prediction market on Starknet.\n"+
			"- BTC/USD: $%s\n"+
			"- Distance to $100k: %.1f%%\n"+
			"- Distance to $110k: %.1f%%\n"+
			"- Distance to $120k: %.1f%%\n"+
			"- Live contracts: %d, covering BTC price targets\n"+
			"Write 2-3 punchy sentences of market commentary. Reference the actual current price. "+
			"Be analytical, neither hype nor doom. Mention one specific insight about the privacy angle "+
			"(commit-reveal means no sentiment manipulation). Sound like a real desk trader. No emojis. Max 70 words.",
		formatUSD(price), pct100, pct110, pct120, liveMarkets)
}

// FallbackNote is the deterministic rule-based note used when the model path
// is unavailable.
func FallbackNote(price float64) string {
	if price >= 100_000 {
		return "BTC broke $100k and the upper price targets are now live. The commit-reveal mechanism " +
			"protected early bettors from sentiment leakage; no one could front-run the move. Eyes on $110k next."
	}
	gap := (100_000 - price) / price * 100
	return fmt.Sprintf("BTC trading at $%s, roughly %.1f%% below the $100k threshold. "+
		"Commit-reveal privacy means market sentiment was not visible to other traders until after "+
		"the window closed, exactly the edge the protocol provides.", formatUSD(price), gap)
}

// formatUSD renders a price with thousands separators and no decimals.
func formatUSD(v float64) string {
	n := int64(math.Round(v))
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
