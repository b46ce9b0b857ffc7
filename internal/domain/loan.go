package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AssetAmount is a (currency, amount) pair as reported by the exchange.
type AssetAmount struct {
	Currency string
	Amount   decimal.Decimal
}

// LoanInfo is the flexible-loan record. LTV fields are fractions as sent by the API.
type LoanInfo struct {
	Collateral            []AssetAmount
	Loans                 []AssetAmount
	CollateralNotionalUSD OptionalDecimal
	LoanNotionalUSD       OptionalDecimal
	CurrentLTV            OptionalDecimal
	MarginCallLTV         OptionalDecimal
	LiquidationLTV        OptionalDecimal
}

// CollateralCurrencies returns distinct collateral currencies in first-seen order.
func (li *LoanInfo) CollateralCurrencies() []string {
	if li == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(li.Collateral))
	out := make([]string, 0, len(li.Collateral))
	for _, c := range li.Collateral {
		if _, ok := seen[c.Currency]; ok || c.Currency == "" {
			continue
		}
		seen[c.Currency] = struct{}{}
		out = append(out, c.Currency)
	}
	return out
}

// CollateralAsset is one collateral line valued in USD.
// Priced is false when no price source produced a price; USDValue is then
// zero but the value is unknown, not worthless.
type CollateralAsset struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price"`
	USDValue decimal.Decimal `json:"usd_value"`
	Source   PriceSource     `json:"source"`
	Priced   bool            `json:"priced"`
}

// LoanMetrics is the derived view of a loan position. LTVs are percentages.
type LoanMetrics struct {
	HasLoan          bool
	CollateralUSD    decimal.Decimal
	LoanUSD          decimal.Decimal
	CurrentLTV       decimal.Decimal
	MarginCallLTV    decimal.Decimal
	LiquidationLTV   decimal.Decimal
	CollateralAssets []CollateralAsset
	LoanAssets       []AssetAmount

	// ComputedCollateralUSD is the sum of priced collateral lines.
	ComputedCollateralUSD decimal.Decimal
	LTVToMarginCall       decimal.Decimal
	LTVToLiquidation      decimal.Decimal
	// MarginCallRatio is current/margin-call LTV in percent.
	MarginCallRatio decimal.Decimal
	// CollateralDropToMarginCall is how far collateral may fall, in percent, before a margin call.
	CollateralDropToMarginCall decimal.Decimal
	UnpricedCount              int
	// PriceDiscrepancyPct compares ComputedCollateralUSD with the exchange notional.
	PriceDiscrepancyPct decimal.Decimal
}

// Risk classifies the metrics. No loan is SAFE.
func (m LoanMetrics) Risk() RiskTier {
	if !m.HasLoan {
		return RiskSafe
	}
	return ClassifyRisk(m.CurrentLTV, m.MarginCallLTV, m.LiquidationLTV)
}

// DiscrepancyExceeds reports whether PriceDiscrepancyPct is above threshold percent.
func (m LoanMetrics) DiscrepancyExceeds(threshold decimal.Decimal) bool {
	return m.HasLoan && m.PriceDiscrepancyPct.GreaterThan(threshold)
}

// TopCollateral returns collateral sorted by USD value, highest first.
// Unpriced lines sort after priced ones.
func (m LoanMetrics) TopCollateral() []CollateralAsset {
	out := make([]CollateralAsset, len(m.CollateralAssets))
	copy(out, m.CollateralAssets)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priced != out[j].Priced {
			return out[i].Priced
		}
		return out[i].USDValue.GreaterThan(out[j].USDValue)
	})
	return out
}

// BuildLoanMetrics values collateral with prices and derives buffers.
// A nil info means there is no loan.
func BuildLoanMetrics(info *LoanInfo, prices Prices) LoanMetrics {
	if info == nil {
		return LoanMetrics{}
	}

	m := LoanMetrics{HasLoan: true}

	for _, c := range info.Collateral {
		if !c.Amount.IsPositive() {
			continue
		}
		asset := CollateralAsset{Currency: c.Currency, Amount: c.Amount}

		rp := prices.Get(c.Currency)
		if IsStablecoin(c.Currency) && !rp.Known() {
			rp = ResolvedPrice{Currency: c.Currency, Price: decimal.NewFromInt(1), Source: PriceSourceStablecoin}
		}
		asset.Source = rp.Source
		if rp.Known() {
			asset.Priced = true
			asset.Price = rp.Price
			asset.USDValue = ValueUSD(c.Amount, rp.Price)
			m.ComputedCollateralUSD = m.ComputedCollateralUSD.Add(asset.USDValue)
		} else {
			m.UnpricedCount++
		}
		m.CollateralAssets = append(m.CollateralAssets, asset)
	}

	for _, l := range info.Loans {
		if !l.Amount.IsPositive() {
			continue
		}
		m.LoanAssets = append(m.LoanAssets, l)
	}

	m.CollateralUSD = info.CollateralNotionalUSD.OrZero()
	m.LoanUSD = info.LoanNotionalUSD.OrZero()
	m.CurrentLTV = info.CurrentLTV.OrZero().Mul(hundred)
	m.MarginCallLTV = info.MarginCallLTV.OrZero().Mul(hundred)
	m.LiquidationLTV = info.LiquidationLTV.OrZero().Mul(hundred)

	m.LTVToMarginCall = m.MarginCallLTV.Sub(m.CurrentLTV)
	m.LTVToLiquidation = m.LiquidationLTV.Sub(m.CurrentLTV)
	if m.MarginCallLTV.IsPositive() {
		m.MarginCallRatio = m.CurrentLTV.Div(m.MarginCallLTV).Mul(hundred)
		if m.LTVToMarginCall.IsPositive() {
			m.CollateralDropToMarginCall = m.LTVToMarginCall.Div(m.MarginCallLTV).Mul(hundred)
		}
	}

	if m.CollateralUSD.IsPositive() {
		m.PriceDiscrepancyPct = m.ComputedCollateralUSD.Sub(m.CollateralUSD).Abs().
			Div(m.CollateralUSD).Mul(hundred)
	}

	return m
}
