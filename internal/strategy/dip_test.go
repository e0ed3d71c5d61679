package strategy

import (
	"log/slog"
	"os"
	"testing"

	"github.com/vivalaakam/new-york-calculate/internal/agent"
	"github.com/vivalaakam/new-york-calculate/internal/sim"
	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDip() *Dip {
	return NewDip(DipConfig{
		Symbol:     "BTC",
		Stake:      5,
		EntryDip:   0.05,
		TakeProfit: 0.10,
	}, testLogger())
}

func flatResult(balance float32) types.CalculateResult {
	return types.CalculateResult{
		Balance:         balance,
		AssetsAvailable: map[types.Symbol]float32{},
		AssetsFrozen:    map[types.Symbol]float32{},
	}
}

func TestDipEntersWhenFlat(t *testing.T) {
	t.Parallel()
	d := testDip()

	cmds := d.Activate(nil, map[types.Symbol]float32{"BTC": 100}, flatResult(1000), nil)
	if len(cmds) != 1 || cmds[0].Type != types.CommandBuyLimit {
		t.Fatalf("cmds = %+v, want one BuyLimit", cmds)
	}
	if cmds[0].Price != 95 {
		t.Errorf("entry price = %v, want 95 (5%% below open)", cmds[0].Price)
	}
	if cmds[0].Stake != 5 {
		t.Errorf("stake = %v, want 5", cmds[0].Stake)
	}
}

func TestDipWaitsOnOpenOrder(t *testing.T) {
	t.Parallel()
	d := testDip()

	open := map[types.Symbol][]types.Order{
		"BTC": {{Side: types.Buy, Status: types.StatusOpen}},
	}
	cmds := d.Activate(nil, map[types.Symbol]float32{"BTC": 100}, flatResult(1000), open)
	if len(cmds) != 1 || cmds[0].Type != types.CommandNone {
		t.Errorf("cmds = %+v, want None while an order rests", cmds)
	}
}

func TestDipExitsAfterFill(t *testing.T) {
	t.Parallel()
	d := testDip()

	d.OnOrder(1, types.Order{Side: types.Buy, Status: types.StatusClose, Price: 95})

	result := flatResult(525)
	result.AssetsAvailable["BTC"] = 5
	cmds := d.Activate(nil, map[types.Symbol]float32{"BTC": 100}, result, nil)

	if len(cmds) != 1 || cmds[0].Type != types.CommandSellLimit {
		t.Fatalf("cmds = %+v, want one SellLimit", cmds)
	}
	if cmds[0].Price != 95*1.1 {
		t.Errorf("exit price = %v, want %v", cmds[0].Price, float32(95*1.1))
	}
}

func TestDipSkipsWhenBroke(t *testing.T) {
	t.Parallel()
	d := testDip()

	cmds := d.Activate(nil, map[types.Symbol]float32{"BTC": 100}, flatResult(10), nil)
	if len(cmds) != 1 || cmds[0].Type != types.CommandNone {
		t.Errorf("cmds = %+v, want None on insufficient balance", cmds)
	}
}

// Full cycle through the driver: entry fills on a dip, exit fills on the
// rally, the agent ends flat with a profit.
func TestDipFullCycle(t *testing.T) {
	t.Parallel()

	d := testDip()
	ag := agent.New(1000.0, 0.0001, d, testLogger())

	mk := func(start types.Timestamp, open, high, low, close float32) types.Candle {
		return types.Bar{Symbol: "BTC", StartTime: start, Open: open, High: high, Low: low, Close: close}
	}
	candles := map[types.Timestamp][]types.Candle{
		0: {mk(0, 100, 105, 98, 102)},
		1: {mk(1, 100, 103, 94, 96)},   // entry at 95 fills (94 < 95)
		2: {mk(2, 96, 100, 95, 99)},    // exit at 104.5 placed, no fill
		3: {mk(3, 100, 110, 99, 108)},  // 110 > 104.5: exit fills
		4: {mk(4, 108, 112, 106, 110)}, // next entry cycle starts
	}

	s := sim.New(candles, []*agent.Agent{ag}, testLogger())
	s.RunToEnd()

	res := ag.Result()
	if res.ExecutedOrders < 2 {
		t.Fatalf("executed orders = %d, want at least the entry and exit", res.ExecutedOrders)
	}

	executed := ag.ExecutedOrders()
	if executed[0].Side != types.Buy || executed[0].Status != types.StatusClose {
		t.Errorf("first executed = %s/%s, want BUY/CLOSE", executed[0].Side, executed[0].Status)
	}
	if executed[1].Side != types.Sell || executed[1].Status != types.StatusClose {
		t.Errorf("second executed = %s/%s, want SELL/CLOSE", executed[1].Side, executed[1].Status)
	}
	if executed[1].Price != 95*1.1 {
		t.Errorf("exit price = %v, want %v", executed[1].Price, float32(95*1.1))
	}
}
