package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxSnapshotAssets caps collateral lines kept per snapshot.
	MaxSnapshotAssets = 20
)

var minSnapshotAssetUSD = decimal.NewFromInt(1)

// SnapshotAsset is a collateral line stored with a snapshot.
type SnapshotAsset struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	USDValue decimal.Decimal `json:"usd_value"`
	Price    decimal.Decimal `json:"price"`
}

// LoanSnapshot is the persisted state of a loan at one run.
// Decimals marshal as strings so readers never see float rounding.
type LoanSnapshot struct {
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"ts"`
	CollateralUSD    decimal.Decimal `json:"collateral_usd"`
	LoanUSD          decimal.Decimal `json:"loan_usd"`
	CurrentLTV       decimal.Decimal `json:"current_ltv"`
	MarginCallLTV    decimal.Decimal `json:"margin_call_ltv"`
	LiquidationLTV   decimal.Decimal `json:"liquidation_ltv"`
	LTVToMarginCall  decimal.Decimal `json:"ltv_to_margin_call"`
	LTVToLiquidation decimal.Decimal `json:"ltv_to_liquidation"`
	RiskTier         RiskTier        `json:"risk_tier"`
	AccountEquityUSD decimal.Decimal `json:"account_equity_usd"`
	Collateral       []SnapshotAsset `json:"collateral,omitempty"`
}

// NewLoanSnapshot builds a snapshot from metrics. Only the top collateral
// lines worth more than $1 are kept.
func NewLoanSnapshot(id string, timestamp time.Time, m LoanMetrics, accountEquity decimal.Decimal) LoanSnapshot {
	s := LoanSnapshot{
		ID:               id,
		Timestamp:        timestamp,
		CollateralUSD:    m.CollateralUSD,
		LoanUSD:          m.LoanUSD,
		CurrentLTV:       m.CurrentLTV,
		MarginCallLTV:    m.MarginCallLTV,
		LiquidationLTV:   m.LiquidationLTV,
		LTVToMarginCall:  m.LTVToMarginCall,
		LTVToLiquidation: m.LTVToLiquidation,
		RiskTier:         m.Risk(),
		AccountEquityUSD: accountEquity,
	}

	for _, a := range m.TopCollateral() {
		if len(s.Collateral) == MaxSnapshotAssets {
			break
		}
		if !a.Priced || !a.USDValue.GreaterThan(minSnapshotAssetUSD) {
			continue
		}
		s.Collateral = append(s.Collateral, SnapshotAsset{
			Currency: a.Currency,
			Amount:   a.Amount,
			USDValue: a.USDValue,
			Price:    a.Price,
		})
	}

	return s
}

// LoanSnapshotRecord bundles a snapshot with its WAL index.
type LoanSnapshotRecord struct {
	Index    uint64
	Snapshot LoanSnapshot
}
