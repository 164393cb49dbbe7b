package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"mt5-connect/internal/messages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDb(t *testing.T) *MarketDb {
	t.Helper()
	mdb := &MarketDb{}
	require.NoError(t, mdb.Create(filepath.Join(t.TempDir(), "mt5_connect_test.db")))
	t.Cleanup(func() { mdb.Close() })
	return mdb
}

func bars(n int, base time.Time) []messages.Bar {
	out := make([]messages.Bar, n)
	for i := range out {
		out[i] = messages.Bar{
			Time:  base.Add(time.Duration(i) * time.Minute),
			Open:  1.1,
			High:  1.2,
			Low:   1.0,
			Close: 1.15,
		}
	}
	return out
}

func TestMarketDataRoundTrip(t *testing.T) {
	mdb := testDb(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, mdb.SaveMarketData("EURUSD", 60, bars(10, base)))

	got, err := mdb.GetMarketData("EURUSD", 60, 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.True(t, got[0].Time.Equal(base))
	assert.True(t, got[9].Time.Equal(base.Add(9*time.Minute)))
}

func TestGetMarketDataReturnsMostRecent(t *testing.T) {
	mdb := testDb(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, mdb.SaveMarketData("EURUSD", 60, bars(10, base)))

	got, err := mdb.GetMarketData("EURUSD", 60, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Time.Equal(base.Add(7*time.Minute)), "only the tail of the series is returned")
}

func TestSaveMarketDataMergesByTimestamp(t *testing.T) {
	mdb := testDb(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, mdb.SaveMarketData("EURUSD", 60, bars(5, base)))

	replacement := []messages.Bar{{Time: base.Add(2 * time.Minute), Open: 9.9, High: 9.9, Low: 9.9, Close: 9.9}}
	require.NoError(t, mdb.SaveMarketData("EURUSD", 60, replacement))

	got, err := mdb.GetMarketData("EURUSD", 60, 10)
	require.NoError(t, err)
	require.Len(t, got, 5, "bars with an existing timestamp replace the stored bar")
	assert.Equal(t, 9.9, got[2].Close)
}

func TestGetMarketDataUnknownSeries(t *testing.T) {
	mdb := testDb(t)

	got, err := mdb.GetMarketData("XAUUSD", 60, 100)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarketDataSeriesAreIndependent(t *testing.T) {
	mdb := testDb(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, mdb.SaveMarketData("EURUSD", 60, bars(5, base)))
	require.NoError(t, mdb.SaveMarketData("EURUSD", 240, bars(3, base)))

	h1, err := mdb.GetMarketData("EURUSD", 60, 10)
	require.NoError(t, err)
	h4, err := mdb.GetMarketData("EURUSD", 240, 10)
	require.NoError(t, err)

	assert.Len(t, h1, 5)
	assert.Len(t, h4, 3)
}

func TestTradesReturnedNewestFirst(t *testing.T) {
	mdb := testDb(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, mdb.SaveTrade(messages.TradeRecord{
			Symbol:   "EURUSD",
			ExitTime: base.Add(time.Duration(i) * time.Hour),
			Profit:   float64(i),
		}))
	}

	trades, err := mdb.GetTrades(3)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, 4.0, trades[0].Profit)
	assert.Equal(t, 2.0, trades[2].Profit)
}

func TestGetTradesOnEmptyBucket(t *testing.T) {
	mdb := testDb(t)

	trades, err := mdb.GetTrades(100)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
