package loansnapshots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

func snapshotAt(id string, ts time.Time, ltv string) domain.LoanSnapshot {
	return domain.LoanSnapshot{
		ID:            id,
		Timestamp:     ts,
		CurrentLTV:    decimal.RequireFromString(ltv),
		MarginCallLTV: decimal.NewFromInt(80),
		RiskTier:      domain.RiskSafe,
		Collateral: []domain.SnapshotAsset{
			{Currency: "BTC", Amount: decimal.RequireFromString("0.5"), USDValue: decimal.NewFromInt(30000), Price: decimal.NewFromInt(60000)},
		},
	}
}

func TestWALStore_AppendAndQuery(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, ltv := range []string{"40", "42.5", "45"} {
		idx, err := store.Append(snapshotAt(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour), ltv))
		require.NoError(t, err)
		assert.EqualValues(t, i+1, idx)
	}

	all, err := store.Query(base)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")
	assert.Equal(t, "a", all[2].ID)
	assert.True(t, decimal.RequireFromString("42.5").Equal(all[1].CurrentLTV))
	require.Len(t, all[0].Collateral, 1)
	assert.Equal(t, "BTC", all[0].Collateral[0].Currency)

	recent, err := store.Query(base.Add(90 * time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].ID)
}

func TestWALStore_SnapshotsAfter(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	now := time.Now().UTC()
	_, err = store.Append(snapshotAt("first", now, "10"))
	require.NoError(t, err)
	_, err = store.Append(snapshotAt("second", now, "11"))
	require.NoError(t, err)

	records, err := store.SnapshotsAfter(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0].Index)
	assert.Equal(t, "second", records[0].Snapshot.ID)

	records, err = store.SnapshotsAfter(store.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWALStore_Replay(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC().Truncate(time.Second)

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	_, err = store.Append(snapshotAt("kept", now, "55"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Query(now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].ID)
	assert.True(t, now.Equal(got[0].Timestamp))
}

func TestWALStore_RejectsMissingID(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Append(domain.LoanSnapshot{})
	assert.Error(t, err)
}

func TestWALStore_Nil(t *testing.T) {
	var store *WALStore
	_, err := store.Append(domain.LoanSnapshot{ID: "x"})
	assert.Error(t, err)
	assert.Zero(t, store.CurrentIndex())
}
