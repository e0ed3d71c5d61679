// Package sim implements the time-stepped replay loop of the backtester.
//
// A Simulation owns a sorted timeline of tick timestamps and the bars keyed
// by them. Each Step activates every agent's policy on the previous tick's
// bars, dispatches the returned commands against the current tick's bars,
// and then advances each current bar through the agent's execution engine.
// Given identical inputs the run is fully reproducible: there is no clock,
// no randomness, and no concurrency inside the loop.
package sim

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/vivalaakam/new-york-calculate/internal/agent"
	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

// ErrExhausted is returned by Step once the timeline has been consumed.
var ErrExhausted = errors.New("timeline exhausted")

// Simulation replays a candle timeline through a set of agents. Agents run
// over the same bars in registration order and never interact.
type Simulation struct {
	timeline []types.Timestamp
	candles  map[types.Timestamp][]types.Candle
	pointer  int
	agents   []*agent.Agent
	logger   *slog.Logger
}

// New builds a simulation over the given candles. Timestamps are sorted
// once here; the first tick serves as observation history only, so the
// pointer starts at 1.
func New(candles map[types.Timestamp][]types.Candle, agents []*agent.Agent, logger *slog.Logger) *Simulation {
	timeline := make([]types.Timestamp, 0, len(candles))
	for ts := range candles {
		timeline = append(timeline, ts)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i] < timeline[j] })

	return &Simulation{
		timeline: timeline,
		candles:  candles,
		pointer:  1,
		agents:   agents,
		logger:   logger.With("component", "sim"),
	}
}

// Step advances the simulation by one tick. Dispatch errors are logged and
// discarded so one failed command never stalls the run.
func (s *Simulation) Step() error {
	if s.pointer >= len(s.timeline) {
		return ErrExhausted
	}

	ts := s.timeline[s.pointer]
	prev := s.candles[s.timeline[s.pointer-1]]
	curr := s.candles[ts]

	// Transient symbol → bar lookup so command dispatch stays O(commands).
	bySymbol := make(map[types.Symbol]types.Candle, len(curr))
	prices := make(map[types.Symbol]float32, len(curr))
	for _, candle := range curr {
		bySymbol[candle.GetSymbol()] = candle
		prices[candle.GetSymbol()] = candle.GetOpen()
	}

	for _, ag := range s.agents {
		commands := ag.Activate(prev, prices)

		for _, cmd := range commands {
			candle, ok := bySymbol[cmd.GetSymbol()]
			if !ok {
				// Stale policy state, not an error: the symbol has no bar
				// on this tick.
				if cmd.Type != types.CommandNone && cmd.Type != types.CommandUnknown {
					s.logger.Debug("dropping command for absent symbol", "symbol", cmd.GetSymbol(), "type", cmd.Type)
				}
				continue
			}
			if _, err := ag.PerformOrder(cmd, candle); err != nil {
				s.logger.Warn("command rejected", "ts", ts, "type", cmd.Type, "symbol", cmd.GetSymbol(), "error", err)
			}
		}

		for _, candle := range curr {
			ag.PerformCandle(candle)
		}

		ag.OnEndRound(ts, curr)
	}

	s.pointer++
	return nil
}

// RunToEnd drives Step until the timeline is exhausted, then delivers the
// final result to every agent's policy.
func (s *Simulation) RunToEnd() {
	for {
		if err := s.Step(); err != nil {
			break
		}
	}
	for _, ag := range s.agents {
		ag.OnEnd()
	}
}

// Pointer reports the index of the next tick to execute.
func (s *Simulation) Pointer() int {
	return s.pointer
}

// Timeline returns the sorted tick timestamps the simulation replays.
func (s *Simulation) Timeline() []types.Timestamp {
	return s.timeline
}
