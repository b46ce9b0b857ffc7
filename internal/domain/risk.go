package domain

import "github.com/shopspring/decimal"

// RiskTier is the alert level derived from current and margin-call LTV.
type RiskTier string

const (
	RiskSafe       RiskTier = "SAFE"
	RiskCaution    RiskTier = "CAUTION"
	RiskWarning    RiskTier = "WARNING"
	RiskHigh       RiskTier = "HIGH_RISK"
	RiskMarginCall RiskTier = "MARGIN_CALL"
)

var (
	cautionRatio = decimal.RequireFromString("0.70")
	warningRatio = decimal.RequireFromString("0.85")
	highRatio    = decimal.RequireFromString("0.95")
)

// Severity orders tiers from 0 (SAFE) to 4 (MARGIN_CALL).
func (t RiskTier) Severity() int {
	switch t {
	case RiskCaution:
		return 1
	case RiskWarning:
		return 2
	case RiskHigh:
		return 3
	case RiskMarginCall:
		return 4
	default:
		return 0
	}
}

// ClassifyRisk maps LTVs to a tier using r = current/marginCall.
// Thresholds: r < 0.70 SAFE, r < 0.85 CAUTION, r < 0.95 WARNING,
// then HIGH_RISK while current < marginCall, MARGIN_CALL otherwise.
// A non-positive marginCall is degenerate input and classifies as SAFE.
// liquidation does not affect the tier; current above it is tolerated.
func ClassifyRisk(current, marginCall, liquidation decimal.Decimal) RiskTier {
	if !marginCall.IsPositive() {
		return RiskSafe
	}

	r := current.Div(marginCall)
	switch {
	case r.LessThan(cautionRatio):
		return RiskSafe
	case r.LessThan(warningRatio):
		return RiskCaution
	case r.LessThan(highRatio):
		return RiskWarning
	case current.LessThan(marginCall):
		return RiskHigh
	default:
		return RiskMarginCall
	}
}
