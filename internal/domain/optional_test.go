package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionalDecimal(t *testing.T) {
	o, err := ParseOptionalDecimal("")
	require.NoError(t, err)
	assert.False(t, o.Valid)
	assert.True(t, o.OrZero().IsZero())

	o, err = ParseOptionalDecimal(" 0.75 ")
	require.NoError(t, err)
	assert.True(t, o.Valid)
	assert.True(t, decimal.RequireFromString("0.75").Equal(o.OrZero()))

	_, err = ParseOptionalDecimal("n/a")
	require.Error(t, err)
}
