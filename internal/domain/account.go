package domain

import "github.com/shopspring/decimal"

// AccountCurrency is one currency line of the trading account.
type AccountCurrency struct {
	Currency  string          `json:"currency"`
	Equity    decimal.Decimal `json:"equity"`
	Available decimal.Decimal `json:"available"`
}

// AccountMetrics summarizes the trading account balance.
type AccountMetrics struct {
	TotalEquityUSD decimal.Decimal   `json:"total_equity_usd"`
	Currencies     []AccountCurrency `json:"currencies"`
}

// Significant returns currencies with equity above minEquity in exchange order.
func (a AccountMetrics) Significant(minEquity decimal.Decimal) []AccountCurrency {
	out := make([]AccountCurrency, 0, len(a.Currencies))
	for _, c := range a.Currencies {
		if c.Equity.GreaterThan(minEquity) {
			out = append(out, c)
		}
	}
	return out
}
