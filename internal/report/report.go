// Package report renders a loan run as a styled terminal report.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/loanmon/internal/domain"
	"github.com/vadiminshakov/loanmon/internal/services/indicators"
)

const (
	maxAccountRows = 10
	noPrice        = "n/a (no price)"
)

var dustThreshold = decimal.NewFromInt(1)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#A8A8A8", Dark: "#626262"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().Width(28)
	mutedStyle = lipgloss.NewStyle().Foreground(subtle)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	tierColors = map[domain.RiskTier]lipgloss.Color{
		domain.RiskSafe:       lipgloss.Color("42"),
		domain.RiskCaution:    lipgloss.Color("226"),
		domain.RiskWarning:    lipgloss.Color("214"),
		domain.RiskHigh:       lipgloss.Color("202"),
		domain.RiskMarginCall: lipgloss.Color("196"),
	}
)

// Report is everything one rendering needs.
type Report struct {
	GeneratedAt          time.Time
	Loan                 domain.LoanMetrics
	Account              domain.AccountMetrics
	DiscrepancyThreshold decimal.Decimal
	// History is ordered newest first.
	History []domain.LoanSnapshot
	// Trend is nil when history is too short.
	Trend *indicators.LTVTrend
}

// TierStyle returns the badge style for a risk tier.
func TierStyle(t domain.RiskTier) lipgloss.Style {
	c, ok := tierColors[t]
	if !ok {
		c = lipgloss.Color("244")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(c).Bold(true).Padding(0, 1)
}

// Render writes the report to w.
func Render(w io.Writer, r Report) error {
	var b strings.Builder

	b.WriteString(headerStyle.Render("OKX FLEXIBLE LOAN MONITOR"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(r.GeneratedAt.UTC().Format(time.RFC3339)))
	b.WriteString("\n")

	writeLoan(&b, r)
	writeAccount(&b, r.Account)
	writeHistory(&b, r.History, r.Trend)

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write report")
}

func writeLoan(b *strings.Builder, r Report) {
	m := r.Loan
	section(b, "LOAN")
	if !m.HasLoan {
		b.WriteString(mutedStyle.Render("no active flexible loan"))
		b.WriteString("\n")
		return
	}

	tier := m.Risk()
	row(b, "Risk", TierStyle(tier).Render(string(tier)))
	row(b, "Collateral (exchange)", usd(m.CollateralUSD))
	row(b, "Collateral (computed)", usd(m.ComputedCollateralUSD))
	row(b, "Borrowed", usd(m.LoanUSD))
	row(b, "Current LTV", pct(m.CurrentLTV))
	row(b, "Margin call LTV", pct(m.MarginCallLTV))
	row(b, "Liquidation LTV", pct(m.LiquidationLTV))

	if m.DiscrepancyExceeds(r.DiscrepancyThreshold) {
		b.WriteString(warnStyle.Render(fmt.Sprintf(
			"computed collateral differs from exchange value by %s%%", m.PriceDiscrepancyPct.StringFixed(2))))
		b.WriteString("\n")
	}

	section(b, "BUFFERS")
	row(b, "LTV to margin call", pct(m.LTVToMarginCall))
	row(b, "LTV to liquidation", pct(m.LTVToLiquidation))
	row(b, "Margin call ratio", pct(m.MarginCallRatio))
	row(b, "Collateral drop to MC", pct(m.CollateralDropToMarginCall))

	if len(m.LoanAssets) > 0 {
		section(b, "BORROWED ASSETS")
		for _, l := range m.LoanAssets {
			row(b, l.Currency, l.Amount.String())
		}
	}

	section(b, "COLLATERAL")
	var (
		dustCount int
		dustValue decimal.Decimal
	)
	for _, a := range m.TopCollateral() {
		switch {
		case !a.Priced:
			row(b, a.Currency, fmt.Sprintf("%s  %s", a.Amount.String(), mutedStyle.Render(noPrice)))
		case a.USDValue.LessThan(dustThreshold):
			dustCount++
			dustValue = dustValue.Add(a.USDValue)
		default:
			row(b, a.Currency, fmt.Sprintf("%s  @ %s = %s  [%s]",
				a.Amount.String(), a.Price.String(), usd(a.USDValue), a.Source))
		}
	}
	if dustCount > 0 {
		row(b, fmt.Sprintf("dust (%d assets)", dustCount), usd(dustValue))
	}
	if m.UnpricedCount > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d collateral asset(s) without a price", m.UnpricedCount)))
		b.WriteString("\n")
	}
}

func writeAccount(b *strings.Builder, a domain.AccountMetrics) {
	section(b, "TRADING ACCOUNT")
	row(b, "Total equity", usd(a.TotalEquityUSD))

	assets := a.Significant(decimal.Zero)
	if len(assets) > maxAccountRows {
		assets = assets[:maxAccountRows]
	}
	for _, c := range assets {
		row(b, c.Currency, fmt.Sprintf("%s (available %s)", c.Equity.String(), c.Available.String()))
	}
}

func writeHistory(b *strings.Builder, history []domain.LoanSnapshot, trend *indicators.LTVTrend) {
	if len(history) == 0 {
		return
	}
	section(b, "HISTORY")
	fmt.Fprintf(b, "%-20s %12s %14s %14s  %s\n", "time", "LTV", "collateral", "loan", "risk")
	for _, s := range history {
		fmt.Fprintf(b, "%-20s %12s %14s %14s  %s\n",
			s.Timestamp.UTC().Format("2006-01-02 15:04"),
			pct(s.CurrentLTV), usd(s.CollateralUSD), usd(s.LoanUSD), s.RiskTier)
	}

	if trend != nil {
		row(b, fmt.Sprintf("LTV trend (EMA%d)", trend.Period),
			fmt.Sprintf("%s vs %s, %s", pct(trend.Current), pct(trend.EMA), trend.Direction))
	}
}

func section(b *strings.Builder, title string) {
	b.WriteString(sectionStyle.Render(title))
	b.WriteString("\n")
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func pct(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}
