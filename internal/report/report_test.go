package report

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func sampleResult() types.CalculateResult {
	return types.CalculateResult{
		Balance:        1099.8899,
		MinBalance:     499.95,
		OpenedOrders:   0,
		ExecutedOrders: 2,
		AssetsAvailable: map[types.Symbol]float32{
			"BTCUSDT": 0,
		},
		AssetsFrozen: map[types.Symbol]float32{},
	}
}

func sampleOrders() []types.Order {
	return []types.Order{
		{
			ID: uuid.New(), Symbol: "BTCUSDT", CreatedAt: 0, FinishedAt: 0,
			Price: 100, Qty: 5, Commission: 0.05,
			Status: types.StatusClose, Side: types.Buy, Type: types.Market,
		},
		{
			ID: uuid.New(), Symbol: "BTCUSDT", CreatedAt: 1, FinishedAt: 1,
			Price: 120, Qty: 5, Commission: 0.06,
			Status: types.StatusClose, Side: types.Sell, Type: types.Market,
		},
	}
}

func TestRecorderSaveRun(t *testing.T) {
	t.Parallel()
	r := openTestRecorder(t)

	require.NoError(t, r.SaveRun("run-1", "dip", sampleResult(), sampleOrders()))

	runs, err := r.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "dip", runs[0].Agent)
	assert.Equal(t, 2, runs[0].ExecutedOrders)
	assert.Equal(t, "1099.8899", runs[0].Balance.String())
	assert.Equal(t, "499.95", runs[0].MinBalance.String())
}

func TestRecorderOrdersForRun(t *testing.T) {
	t.Parallel()
	r := openTestRecorder(t)

	orders := sampleOrders()
	require.NoError(t, r.SaveRun("run-2", "dip", sampleResult(), orders))

	rows, err := r.OrdersForRun("run-2")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, orders[0].ID.String(), rows[0].OrderID)
	assert.Equal(t, "BUY", rows[0].Side)
	assert.Equal(t, "SELL", rows[1].Side)
	assert.Equal(t, "CLOSE", rows[1].Status)
	assert.Equal(t, "120", rows[1].Price.String())

	missing, err := r.OrdersForRun("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRecorderRecentRunsOrder(t *testing.T) {
	t.Parallel()
	r := openTestRecorder(t)

	require.NoError(t, r.SaveRun("run-a", "dip", sampleResult(), nil))
	require.NoError(t, r.SaveRun("run-b", "dip", sampleResult(), nil))

	runs, err := r.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-b", runs[0].RunID)
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	assert.NoError(t, r.SaveRun("run", "dip", sampleResult(), sampleOrders()))

	runs, err := r.RecentRuns(5)
	assert.NoError(t, err)
	assert.Nil(t, runs)
	assert.NoError(t, r.Close())
}
