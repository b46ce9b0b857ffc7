package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

func TestCollector(t *testing.T) {
	c := NewCollector()

	c.ObserveResolution(domain.PriceSourceSnapshot)
	c.ObserveResolution(domain.PriceSourceSnapshot)
	c.ObserveResolution(domain.PriceSourceUnresolved)
	c.ObserveLookupFailure("ticker")
	c.ObserveLoan(decimal.RequireFromString("72.5"), domain.RiskCaution)
	c.ObserveRun(time.Second, nil)
	c.ObserveRun(time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.resolutions.WithLabelValues("snapshot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutions.WithLabelValues("unresolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lookupFailures.WithLabelValues("ticker")))
	assert.Equal(t, 72.5, testutil.ToFloat64(c.currentLTV))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.riskTier))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("error")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ObserveLoan(decimal.NewFromInt(50), domain.RiskSafe)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "loanmon_loan_current_ltv_percent 50")
}
