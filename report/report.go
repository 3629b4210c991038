// Package report renders run results as boxed text tables.
package report

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"macdlab/backtest"
	"macdlab/portfolio"
	"macdlab/walkforward"
)

const width = 76

// Style controls terminal colouring. Colour is only emitted when the
// writer is a terminal that supports it.
type Style struct {
	Color bool
}

type renderer struct {
	w     io.Writer
	p     *message.Printer
	style Style
	gain  lipgloss.Style
	loss  lipgloss.Style
	err   error
}

func newRenderer(w io.Writer, style Style) *renderer {
	lr := lipgloss.NewRenderer(w)
	return &renderer{
		w:     w,
		p:     message.NewPrinter(language.English),
		style: style,
		gain:  lr.NewStyle().Foreground(lipgloss.Color("2")),
		loss:  lr.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (r *renderer) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = r.p.Fprintf(r.w, format, args...)
}

func (r *renderer) top() { r.printf("╔%s╗\n", strings.Repeat("═", width)) }
func (r *renderer) mid() { r.printf("╠%s╣\n", strings.Repeat("═", width)) }
func (r *renderer) thin() { r.printf("╟%s╢\n", strings.Repeat("─", width)) }
func (r *renderer) bottom() { r.printf("╚%s╝\n", strings.Repeat("═", width)) }

// line pads text to the box width. Colour codes are not counted.
func (r *renderer) line(text string) {
	visible := lipgloss.Width(text)
	pad := width - 2 - visible
	if pad < 0 {
		pad = 0
	}
	r.printf("║  %s%s║\n", text, strings.Repeat(" ", pad))
}

func (r *renderer) pct(v float64) string {
	s := r.p.Sprintf("%+.2f%%", v*100)
	return r.colour(v, s)
}

func (r *renderer) colour(v float64, s string) string {
	if !r.style.Color {
		return s
	}
	switch {
	case v > 0:
		return r.gain.Render(s)
	case v < 0:
		return r.loss.Render(s)
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}

// Backtest prints one block per result.
func Backtest(w io.Writer, results []backtest.Result, style Style) error {
	r := newRenderer(w, style)
	r.top()
	r.line("MACD backtest")
	for _, res := range results {
		r.mid()
		r.line(r.p.Sprintf("%-10s params %s  policy %s", truncate(res.Symbol, 10), res.Params, res.Policy))
		r.thin()
		if len(res.Errors) > 0 {
			for _, e := range res.Errors {
				r.line("error: " + truncate(e, width-10))
			}
			continue
		}
		metrics(r, res.Metrics)
	}
	r.bottom()
	return r.err
}

func metrics(r *renderer, m backtest.Metrics) {
	r.line(r.p.Sprintf("Total return     %s   Market return  %s", r.pct(m.TotalReturn), r.pct(m.MarketReturn)))
	r.line(r.p.Sprintf("Annual return    %s   Volatility     %.2f%%", r.pct(m.AnnualReturn), m.Volatility*100))
	r.line(r.p.Sprintf("Sharpe ratio     %s   Max drawdown   %s", r.colour(m.SharpeRatio, r.p.Sprintf("%.3f", m.SharpeRatio)), r.pct(m.MaxDrawdown)))
	r.line(r.p.Sprintf("Win rate         %.2f%%   Beta           %.3f", m.WinRate*100, m.Beta))
	r.line(r.p.Sprintf("Trades           %d   Cost           %.4f   Observations %d", m.Trades, m.TotalCost, m.Observations))
}

// Comparison prints default against optimised parameters on the same data.
func Comparison(w io.Writer, base, tuned backtest.Result, style Style) error {
	r := newRenderer(w, style)
	r.top()
	r.line(r.p.Sprintf("%s: default %s vs optimised %s", base.Symbol, base.Params, tuned.Params))
	r.mid()
	r.line("Default")
	r.thin()
	metrics(r, base.Metrics)
	r.mid()
	r.line("Optimised")
	r.thin()
	metrics(r, tuned.Metrics)
	r.mid()
	diff := tuned.Metrics.SharpeRatio - base.Metrics.SharpeRatio
	r.line(r.p.Sprintf("Sharpe improvement %s", r.colour(diff, r.p.Sprintf("%+.3f", diff))))
	r.bottom()
	return r.err
}

// WalkForward prints one row per window and the summary lines.
func WalkForward(w io.Writer, results []walkforward.Result, style Style) error {
	r := newRenderer(w, style)
	s := walkforward.Summarize(results)
	r.top()
	r.line("Walk-forward analysis")
	r.mid()
	r.line("Test window              Params        Return     Sharpe   Trades")
	r.thin()
	for _, res := range results {
		flag := ""
		if res.Fallback {
			flag = " *"
		}
		r.line(r.p.Sprintf("%s..%s  %-12s %s  %7.3f  %5d%s",
			res.WindowStart.Format("2006-01-02"), res.WindowEnd.Format("01-02"),
			res.Params.String(), r.pct(res.OutOfSampleReturn), res.OutOfSampleSharpe, res.Trades, flag))
	}
	r.mid()
	r.line(r.p.Sprintf("Average out-of-sample Sharpe ratio: %.3f", s.MeanSharpe))
	r.line(r.p.Sprintf("Win rate (positive periods): %.2f%%", s.PositiveFraction*100))
	if s.Fallbacks > 0 {
		r.line(r.p.Sprintf("* %d of %d windows used the initial parameters", s.Fallbacks, s.Windows))
	}
	r.bottom()
	return r.err
}

// Portfolio prints the overlay's end state.
func Portfolio(w io.Writer, res portfolio.SimulationResult, equity float64, style Style) error {
	r := newRenderer(w, style)
	r.top()
	r.line("Portfolio overlay  run " + truncate(res.RunID, 36))
	r.mid()
	r.line(r.p.Sprintf("Ticks %d   Rebalances %d   Orders %d   Breaker trips %d   Reoptimised %d",
		res.Ticks, res.Rebalances, res.Orders, res.BreakerTrips, res.Reoptimized))
	r.thin()
	metrics(r, res.Metrics)
	r.mid()
	r.line("Symbol      Params        Weight      Signal   Optimisations")
	r.thin()
	for _, a := range res.Assets {
		r.line(r.p.Sprintf("%-10s  %-12s %s  %+6.2f   %d",
			truncate(a.Symbol, 10), a.Params.String(), r.pct(a.Weight), a.Signal, a.Optimizations))
	}
	r.mid()
	r.line(r.p.Sprintf("Total exposure %.2f%%   Max drawdown %.2f%%", res.Exposure*100, res.MaxDrawdown*100))
	if equity > 0 {
		r.line(r.p.Sprintf("Notional value %.0f", equity*finalEquity(res)))
	}
	r.bottom()
	return r.err
}

func finalEquity(res portfolio.SimulationResult) float64 {
	if len(res.Equity) == 0 {
		return 1
	}
	return res.Equity[len(res.Equity)-1].Equity
}
