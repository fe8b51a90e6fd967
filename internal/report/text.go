// Package report renders backtest results for people and exports equity
// curves for other tools.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"quantbts/internal/backtest"
	"quantbts/internal/stats"
	"quantbts/internal/store"
	"quantbts/internal/util"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	nameStyle   = lipgloss.NewStyle().Padding(0, 1)
	valueStyle  = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	gainStyle   = valueStyle.Foreground(lipgloss.Color("10"))
	lossStyle   = valueStyle.Foreground(lipgloss.Color("9"))
	dimStyle    = valueStyle.Foreground(lipgloss.Color("245"))
)

// Meta describes the run a report belongs to.
type Meta struct {
	Strategy       string
	Symbol         string
	Start, End     int
	Bars           int
	Trades         int
	InitialCapital float64
	Commission     float64
}

// MetaFor builds Meta from a result.
func MetaFor(symbol string, res *backtest.Result) Meta {
	m := Meta{
		Strategy:       res.Strategy,
		Symbol:         symbol,
		Bars:           len(res.Bars),
		Trades:         res.NumTrades(),
		InitialCapital: res.Config.InitialCapital,
		Commission:     res.Config.Commission,
	}
	if len(res.Bars) > 0 {
		m.Start = res.Bars[0].Date
		m.End = res.Bars[len(res.Bars)-1].Date
	}
	return m
}

// MetaForRun builds Meta from a saved run. Bars is unknown and left zero.
func MetaForRun(rec *store.RunRecord) Meta {
	return Meta{
		Strategy:       rec.Strategy,
		Symbol:         rec.Symbol,
		Start:          rec.Start,
		End:            rec.End,
		Trades:         rec.NumTrades,
		InitialCapital: rec.InitialCapital,
		Commission:     rec.Commission,
	}
}

// Title is the one-line run description printed above the table.
func (m Meta) Title() string {
	var b strings.Builder
	b.WriteString(m.Strategy)
	if m.Symbol != "" {
		b.WriteString(" on ")
		b.WriteString(m.Symbol)
	}
	if m.Start != 0 {
		fmt.Fprintf(&b, "  %s to %s", util.FormatDate(m.Start), util.FormatDate(m.End))
	}
	return b.String()
}

// signedStyle colours values whose sign carries meaning.
func signedStyle(name string, v float64) lipgloss.Style {
	if !stats.Defined(v) {
		return dimStyle
	}
	switch name {
	case stats.MetricTotalReturn, stats.MetricAnnualizedReturn, stats.MetricAlpha,
		stats.MetricSharpeRatio, stats.MetricSortinoRatio, stats.MetricCalmarRatio:
		if v > 0 {
			return gainStyle
		}
		if v < 0 {
			return lossStyle
		}
	}
	return valueStyle
}

// RenderText writes a statistics table for one run. Undefined metrics are
// printed as "n/a".
func RenderText(w io.Writer, meta Meta, rep stats.Report) error {
	rows := make([][]string, 0, len(rep))
	for _, m := range rep {
		rows = append(rows, []string{m.Name, FormatMetric(m.Name, m.Value)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Metric", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case col == 0:
				return nameStyle
			default:
				return signedStyle(rep[row].Name, rep[row].Value)
			}
		})

	summary := fmt.Sprintf("bars %s  trades %d  capital %s  commission %s",
		FormatInt(int64(meta.Bars)), meta.Trades, FormatMoney(meta.InitialCapital), FormatPct(meta.Commission))

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(meta.Title()),
		dimStyle.UnsetAlign().UnsetPadding().Render(summary),
		t.Render(),
	))
	return err
}

// Column is one run in a comparison table.
type Column struct {
	Label  string
	Report stats.Report
}

// RenderComparison writes one table with a metric per row and a run per
// column, in the order of the first report's metrics.
func RenderComparison(w io.Writer, title string, cols []Column) error {
	if len(cols) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.UnsetAlign().Render("no results"))
		return err
	}

	headers := []string{"Metric"}
	for _, c := range cols {
		headers = append(headers, c.Label)
	}

	names := make([]string, 0, len(cols[0].Report))
	for _, m := range cols[0].Report {
		names = append(names, m.Name)
	}

	values := make([][]float64, len(names))
	rows := make([][]string, len(names))
	for i, name := range names {
		values[i] = make([]float64, len(cols))
		rows[i] = []string{name}
		for j, c := range cols {
			v := MetricValue(c.Report, name)
			values[i][j] = v
			rows[i] = append(rows[i], FormatMetric(name, v))
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case col == 0:
				return nameStyle
			default:
				return signedStyle(names[row], values[row][col-1])
			}
		})

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), t.Render()))
	return err
}

// RenderRuns writes the run history as one row per run.
func RenderRuns(w io.Writer, runs []store.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.UnsetAlign().Render("no saved runs"))
		return err
	}

	returns := make([]float64, len(runs))
	rows := make([][]string, len(runs))
	for i := range runs {
		r := &runs[i]
		tr := MetricValue(r.Report, stats.MetricTotalReturn)
		returns[i] = tr

		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows[i] = []string{
			id,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Strategy,
			r.Symbol,
			util.FormatDate(r.Start) + " " + util.FormatDate(r.End),
			fmt.Sprint(r.NumTrades),
			FormatMoney(MetricValue(r.Report, stats.MetricFinalAssets)),
			FormatPct(tr),
			FormatRatio(MetricValue(r.Report, stats.MetricSharpeRatio)),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "Created", "Strategy", "Symbol", "Range", "Trades", "Final", "Return", "Sharpe").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case col < 5:
				return nameStyle
			case col == 7:
				return signedStyle(stats.MetricTotalReturn, returns[row])
			default:
				return valueStyle
			}
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// MetricValue is rep's value for name, or Undefined when absent.
func MetricValue(rep stats.Report, name string) float64 {
	if v, ok := rep.Get(name); ok {
		return v
	}
	return stats.Undefined
}
