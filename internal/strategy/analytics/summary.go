// Package analytics turns the positions produced by a backtest into
// aggregate performance statistics.
package analytics

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"candleBacktester/internal/domain"
)

// DefaultStartBalance is the base of the compounding balance.
const DefaultStartBalance = 1000.0

// Summary holds the performance statistics of a list of closed trades. P&L
// values are relative (0.05 is +5%).
type Summary struct {
	AverageWin    float64
	AverageLoss   float64 // mean of the non-positive P&Ls, so zero or negative
	Winrate       float64 // rounded to 2 decimals
	ProfitFactor  float64 // rounded to 2 decimals, +Inf with wins and no losses
	Expectancy    float64 // rounded to 2 decimals
	MaxGain       float64
	MaxLoss       float64
	CumulativePnl float64 // final compounding balance
	ProfitResult  float64 // fractional change of the balance

	TradesCount int
	WinsCount   int
	LongsCount  int
	ShortsCount int

	AverageTimeInTrade      int64 // milliseconds
	AverageTimeInTradeLabel string

	MaxDrawdown          float64 // deepest fall of the balance from its peak, as a fraction
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
}

type options struct {
	feeRate      float64
	startBalance float64
}

// Option customises Summarize.
type Option func(*options)

// WithFeeRate subtracts a flat fee from every trade's relative P&L.
func WithFeeRate(rate float64) Option {
	return func(o *options) { o.feeRate = rate }
}

// WithStartBalance changes the base of the compounding balance.
func WithStartBalance(balance float64) Option {
	return func(o *options) { o.startBalance = balance }
}

// Summarize computes the statistics over the closed positions in their given
// order. Open positions are ignored. A zero P&L counts as a loss.
func Summarize(positions []*domain.Position, opts ...Option) Summary {
	o := options{startBalance: DefaultStartBalance}
	for _, opt := range opts {
		opt(&o)
	}

	s := Summary{CumulativePnl: o.startBalance, AverageTimeInTradeLabel: "0"}

	var wins, losses []float64
	var totalTime int64
	balance, peak := o.startBalance, o.startBalance
	streakWins, streakLosses := 0, 0

	for _, pos := range positions {
		if pos == nil || !pos.IsClosed() {
			continue
		}
		pnl := RelativePnlWithFee(pos, o.feeRate)

		s.TradesCount++
		totalTime += *pos.CloseTime - pos.OpenTime
		if pos.Direction == domain.Long {
			s.LongsCount++
		} else {
			s.ShortsCount++
		}

		if pnl > 0 {
			wins = append(wins, pnl)
			streakWins++
			streakLosses = 0
		} else {
			losses = append(losses, pnl)
			streakLosses++
			streakWins = 0
		}
		s.MaxConsecutiveWins = max(s.MaxConsecutiveWins, streakWins)
		s.MaxConsecutiveLosses = max(s.MaxConsecutiveLosses, streakLosses)

		balance *= 1 + pnl
		peak = max(peak, balance)
		if peak > 0 {
			s.MaxDrawdown = max(s.MaxDrawdown, (peak-balance)/peak)
		}
	}

	if s.TradesCount == 0 {
		return s
	}

	s.WinsCount = len(wins)
	s.AverageWin = mean(wins)
	s.AverageLoss = mean(losses)
	if len(wins) > 0 {
		s.MaxGain = extreme(wins, math.Max)
	}
	if len(losses) > 0 {
		s.MaxLoss = extreme(losses, math.Min)
	}

	s.CumulativePnl = balance
	if o.startBalance != 0 {
		s.ProfitResult = (balance - o.startBalance) / o.startBalance
	}

	s.Winrate = round2(float64(len(wins)) / float64(s.TradesCount))
	s.ProfitFactor = profitFactor(wins, losses)
	s.Expectancy = round2(s.Winrate*s.AverageWin - (1-s.Winrate)*s.AverageLoss)

	s.AverageTimeInTrade = int64(math.Round(float64(totalTime) / float64(s.TradesCount)))
	s.AverageTimeInTradeLabel = FormatDuration(s.AverageTimeInTrade)
	return s
}

// RelativePnl is the fractional price change of pos in its direction.
func RelativePnl(pos *domain.Position) float64 {
	if pos.ClosePrice == nil || pos.OpenPrice == 0 {
		return 0
	}
	return (*pos.ClosePrice - pos.OpenPrice) / pos.OpenPrice * float64(pos.Direction)
}

// RelativePnlWithFee is RelativePnl minus a flat fee rate.
func RelativePnlWithFee(pos *domain.Position, feeRate float64) float64 {
	return RelativePnl(pos) - feeRate
}

// FormatDuration renders milliseconds as minutes under an hour, hours under
// a day, else days, with two decimals.
func FormatDuration(ms int64) string {
	minutes := float64(ms) / 60_000
	if minutes < 60 {
		return fmt.Sprintf("%.2f minutes", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%.2f hours", hours)
	}
	return fmt.Sprintf("%.2f days", hours/24)
}

// LogFields flattens the summary for structured logging.
func (s Summary) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"trades":          s.TradesCount,
		"wins":            s.WinsCount,
		"longs":           s.LongsCount,
		"shorts":          s.ShortsCount,
		"winrate":         s.Winrate,
		"profit_factor":   s.ProfitFactor,
		"expectancy":      s.Expectancy,
		"avg_win":         s.AverageWin,
		"avg_loss":        s.AverageLoss,
		"max_gain":        s.MaxGain,
		"max_loss":        s.MaxLoss,
		"cumulative_pnl":  s.CumulativePnl,
		"profit_result":   s.ProfitResult,
		"max_drawdown":    s.MaxDrawdown,
		"avg_time":        s.AverageTimeInTradeLabel,
		"max_consec_wins": s.MaxConsecutiveWins,
		"max_consec_loss": s.MaxConsecutiveLosses,
	}
}

func profitFactor(wins, losses []float64) float64 {
	grossProfit := 0.0
	for _, w := range wins {
		grossProfit += w
	}
	grossLoss := 0.0
	for _, l := range losses {
		grossLoss += l
	}
	grossLoss = math.Abs(grossLoss)

	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return round2(grossProfit / grossLoss)
}

// round2 rounds the exact binary value of x to 2 decimals, ties away from
// zero. 29/200 is stored as 0.14499999999999999 and rounds to 0.14.
func round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	exact := decimal.RequireFromString(strconv.FormatFloat(x, 'f', 1074, 64))
	return exact.Round(2).InexactFloat64()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func extreme(values []float64, pick func(a, b float64) float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		out = pick(out, v)
	}
	return out
}
