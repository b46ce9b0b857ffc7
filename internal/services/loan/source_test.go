package loan

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/vadiminshakov/loanmon/internal/clients"
)

type stubSender struct {
	data map[string]string
	err  error
}

func (s stubSender) Send(_ context.Context, _ string, path string, _ map[string]string) (*clients.OKXResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &clients.OKXResponse{Code: "0", Data: gjson.Parse(s.data[path])}, nil
}

const loanInfoJSON = `[{
	"collateralData": [
		{"ccy": "BTC", "amt": "0.5"},
		{"ccy": "usdc", "amt": "1000"},
		{"ccy": "ETH", "amt": ""}
	],
	"loanData": [{"ccy": "USDT", "amt": "15000"}],
	"collateralNotionalUsd": "31000",
	"loanNotionalUsd": "15000",
	"curLTV": "0.4839",
	"marginCallLTV": "0.8",
	"liqLTV": ""
}]`

func TestSource_LoanInfo(t *testing.T) {
	s := NewSource(stubSender{data: map[string]string{loanInfoPath: loanInfoJSON}}, zap.NewNop())

	info, err := s.LoanInfo(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)

	require.Len(t, info.Collateral, 3)
	assert.Equal(t, "USDC", info.Collateral[1].Currency)
	assert.True(t, info.Collateral[2].Amount.IsZero())
	assert.Equal(t, []string{"BTC", "USDC", "ETH"}, info.CollateralCurrencies())

	require.Len(t, info.Loans, 1)
	assert.True(t, decimal.NewFromInt(15000).Equal(info.Loans[0].Amount))

	assert.True(t, info.CurrentLTV.Valid)
	assert.True(t, decimal.RequireFromString("0.4839").Equal(info.CurrentLTV.Value))
	assert.False(t, info.LiquidationLTV.Valid, "empty string is absent")
}

func TestSource_LoanInfo_NoLoan(t *testing.T) {
	s := NewSource(stubSender{data: map[string]string{loanInfoPath: `[]`}}, zap.NewNop())

	info, err := s.LoanInfo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestSource_LoanInfo_Malformed(t *testing.T) {
	s := NewSource(stubSender{data: map[string]string{
		loanInfoPath: `[{"collateralData": [], "curLTV": "abc"}]`,
	}}, zap.NewNop())

	_, err := s.LoanInfo(context.Background())
	assert.Error(t, err)
}

func TestSource_LoanInfo_SenderError(t *testing.T) {
	s := NewSource(stubSender{err: errors.Wrap(clients.ErrTransport, "boom")}, zap.NewNop())

	_, err := s.LoanInfo(context.Background())
	require.Error(t, err)
	assert.True(t, clients.IsTransport(err))
}

func TestSource_AccountBalance(t *testing.T) {
	s := NewSource(stubSender{data: map[string]string{balancePath: `[{
		"totalEq": "1234.56",
		"details": [
			{"ccy": "USDT", "eq": "1000", "availEq": "900"},
			{"ccy": "BTC", "eq": "0.003", "availEq": ""},
			{"ccy": "DUST", "eq": "", "availEq": ""},
			{"ccy": "BAD", "eq": "x", "availEq": "1"}
		]
	}]`}}, zap.NewNop())

	m, err := s.AccountBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(m.TotalEquityUSD))
	require.Len(t, m.Currencies, 2)
	assert.Equal(t, "USDT", m.Currencies[0].Currency)
	assert.True(t, decimal.NewFromInt(900).Equal(m.Currencies[0].Available))
	assert.True(t, m.Currencies[1].Available.IsZero())
}

func TestSource_AccountBalance_Empty(t *testing.T) {
	s := NewSource(stubSender{data: map[string]string{balancePath: `[]`}}, zap.NewNop())

	m, err := s.AccountBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, m.TotalEquityUSD.IsZero())
	assert.Empty(t, m.Currencies)
}
