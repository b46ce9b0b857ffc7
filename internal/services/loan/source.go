// Package loan reads flexible-loan and trading-account state from OKX.
package loan

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/vadiminshakov/loanmon/internal/clients"
	"github.com/vadiminshakov/loanmon/internal/domain"
)

const (
	loanInfoPath = "/api/v5/finance/flexible-loan/loan-info"
	balancePath  = "/api/v5/account/balance"
)

// Source fetches loan and account data through an OKX sender.
type Source struct {
	sender clients.Sender
	logger *zap.Logger
}

func NewSource(sender clients.Sender, l *zap.Logger) *Source {
	return &Source{
		sender: sender,
		logger: l.With(zap.String("component", "loan_source")),
	}
}

// LoanInfo returns the flexible-loan record, or nil when the account has no loan.
func (s *Source) LoanInfo(ctx context.Context) (*domain.LoanInfo, error) {
	resp, err := s.sender.Send(ctx, http.MethodGet, loanInfoPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetch loan info")
	}

	record := resp.Data.Get("0")
	if !record.Exists() {
		return nil, nil
	}

	return parseLoanInfo(record)
}

func parseLoanInfo(record gjson.Result) (*domain.LoanInfo, error) {
	info := &domain.LoanInfo{}

	var err error
	if info.Collateral, err = parseAmounts(record.Get("collateralData")); err != nil {
		return nil, errors.Wrap(err, "parse collateralData")
	}
	if info.Loans, err = parseAmounts(record.Get("loanData")); err != nil {
		return nil, errors.Wrap(err, "parse loanData")
	}

	fields := []struct {
		name string
		dst  *domain.OptionalDecimal
	}{
		{"collateralNotionalUsd", &info.CollateralNotionalUSD},
		{"loanNotionalUsd", &info.LoanNotionalUSD},
		{"curLTV", &info.CurrentLTV},
		{"marginCallLTV", &info.MarginCallLTV},
		{"liqLTV", &info.LiquidationLTV},
	}
	for _, f := range fields {
		v, err := domain.ParseOptionalDecimal(record.Get(f.name).String())
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", f.name)
		}
		*f.dst = v
	}

	return info, nil
}

func parseAmounts(list gjson.Result) ([]domain.AssetAmount, error) {
	items := list.Array()
	out := make([]domain.AssetAmount, 0, len(items))
	for _, item := range items {
		ccy := domain.NormalizeCurrency(item.Get("ccy").String())
		amt, err := domain.ParseOptionalDecimal(item.Get("amt").String())
		if err != nil {
			return nil, errors.Wrapf(err, "amount of %s", ccy)
		}
		if ccy == "" {
			continue
		}
		out = append(out, domain.AssetAmount{Currency: ccy, Amount: amt.OrZero()})
	}
	return out, nil
}

// AccountBalance returns trading-account equity. Empty or malformed numbers
// count as zero; only currencies with positive equity are kept.
func (s *Source) AccountBalance(ctx context.Context) (domain.AccountMetrics, error) {
	resp, err := s.sender.Send(ctx, http.MethodGet, balancePath, nil)
	if err != nil {
		return domain.AccountMetrics{}, errors.Wrap(err, "fetch account balance")
	}

	record := resp.Data.Get("0")
	if !record.Exists() {
		return domain.AccountMetrics{}, nil
	}

	m := domain.AccountMetrics{
		TotalEquityUSD: s.lenient(record.Get("totalEq").String(), "totalEq"),
	}
	for _, detail := range record.Get("details").Array() {
		ccy := domain.NormalizeCurrency(detail.Get("ccy").String())
		eq := s.lenient(detail.Get("eq").String(), "eq")
		if ccy == "" || !eq.IsPositive() {
			continue
		}
		m.Currencies = append(m.Currencies, domain.AccountCurrency{
			Currency:  ccy,
			Equity:    eq,
			Available: s.lenient(detail.Get("availEq").String(), "availEq"),
		})
	}

	return m, nil
}

func (s *Source) lenient(raw, field string) decimal.Decimal {
	v, err := domain.ParseOptionalDecimal(raw)
	if err != nil {
		s.logger.Warn("malformed account field", zap.String("field", field), zap.String("value", raw))
	}
	return v.OrZero()
}
