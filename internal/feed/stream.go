// stream.go implements the live kline WebSocket feed.
//
// Stream subscribes to Binance <symbol>@kline_<interval> channels and
// delivers each candle once the exchange marks it closed. It reconnects
// with exponential backoff (1s → 30s max) and re-subscribes to every
// tracked channel after reconnection; a read deadline detects silent
// server failures. The stream feeds dataset extension, never the replay
// loop itself.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

const (
	readTimeout      = 90 * time.Second // Binance pings every ~20s; 90s without any frame triggers reconnect
	maxReconnectWait = 30 * time.Second // cap on exponential backoff
	writeTimeout     = 10 * time.Second // deadline for outgoing messages
	barBufferSize    = 256              // buffer for closed candles
)

// klineEvent mirrors the Binance kline stream payload. Only the fields the
// stream consumes are mapped.
type klineEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime int64  `json:"t"` // milliseconds
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Closed    bool   `json:"x"`
	} `json:"k"`
}

// subscribeMsg is the Binance stream management frame.
type subscribeMsg struct {
	Method string   `json:"method"` // "SUBSCRIBE" or "UNSUBSCRIBE"
	Params []string `json:"params"` // e.g. "btcusdt@kline_1m"
	ID     int      `json:"id"`
}

// Stream manages one WebSocket connection delivering closed candles.
type Stream struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex // protects conn reads/writes

	// Track subscriptions for automatic re-subscribe on reconnect
	subscribedMu sync.RWMutex
	subscribed   map[string]bool // stream names, e.g. "btcusdt@kline_1m"
	nextID       int

	barCh  chan types.Bar
	logger *slog.Logger
}

// NewStream creates a kline stream against the given WebSocket endpoint.
func NewStream(wsURL string, logger *slog.Logger) *Stream {
	return &Stream{
		url:        wsURL,
		subscribed: make(map[string]bool),
		barCh:      make(chan types.Bar, barBufferSize),
		logger:     logger.With("component", "stream"),
	}
}

// Bars returns a read-only channel of closed candles.
func (s *Stream) Bars() <-chan types.Bar { return s.barCh }

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("websocket disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Subscribe starts delivery of closed candles for the symbols at the
// given interval.
func (s *Stream) Subscribe(symbols []types.Symbol, interval string) error {
	params := make([]string, 0, len(symbols))
	s.subscribedMu.Lock()
	for _, symbol := range symbols {
		name := streamName(symbol, interval)
		s.subscribed[name] = true
		params = append(params, name)
	}
	s.nextID++
	id := s.nextID
	s.subscribedMu.Unlock()

	return s.writeJSON(subscribeMsg{Method: "SUBSCRIBE", Params: params, ID: id})
}

// Unsubscribe stops delivery for the symbols at the given interval.
func (s *Stream) Unsubscribe(symbols []types.Symbol, interval string) error {
	params := make([]string, 0, len(symbols))
	s.subscribedMu.Lock()
	for _, symbol := range symbols {
		name := streamName(symbol, interval)
		delete(s.subscribed, name)
		params = append(params, name)
	}
	s.nextID++
	id := s.nextID
	s.subscribedMu.Unlock()

	return s.writeJSON(subscribeMsg{Method: "UNSUBSCRIBE", Params: params, ID: id})
}

// Close gracefully closes the connection.
func (s *Stream) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	defer func() {
		s.connMu.Lock()
		conn.Close()
		s.conn = nil
		s.connMu.Unlock()
	}()

	if err := s.resubscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.logger.Info("websocket connected", "url", s.url)

	// Binance sends pings. This handler replaces the default one: it
	// refreshes the read deadline and answers each ping with a pong.
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		s.dispatchMessage(msg)
	}
}

func (s *Stream) resubscribe() error {
	s.subscribedMu.Lock()
	params := make([]string, 0, len(s.subscribed))
	for name := range s.subscribed {
		params = append(params, name)
	}
	s.nextID++
	id := s.nextID
	s.subscribedMu.Unlock()

	if len(params) == 0 {
		return nil
	}
	return s.writeJSON(subscribeMsg{Method: "SUBSCRIBE", Params: params, ID: id})
}

func (s *Stream) dispatchMessage(data []byte) {
	var evt klineEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.EventType != "kline" {
		// Subscription acks and other frames land here.
		return
	}
	if !evt.Kline.Closed {
		return
	}

	bar, err := parseStreamKline(evt)
	if err != nil {
		s.logger.Error("unmarshal kline event", "error", err)
		return
	}

	select {
	case s.barCh <- bar:
	default:
		s.logger.Warn("bar channel full, dropping candle", "symbol", bar.Symbol, "start", bar.StartTime)
	}
}

func parseStreamKline(evt klineEvent) (types.Bar, error) {
	prices := make([]float32, 4)
	for i, field := range []string{evt.Kline.Open, evt.Kline.High, evt.Kline.Low, evt.Kline.Close} {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return types.Bar{}, fmt.Errorf("price field %d: %w", i, err)
		}
		prices[i] = float32(v)
	}

	return types.Bar{
		Symbol:    types.Symbol(evt.Symbol),
		StartTime: types.Timestamp(evt.Kline.StartTime) / 1000,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
	}, nil
}

func (s *Stream) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func streamName(symbol types.Symbol, interval string) string {
	return strings.ToLower(string(symbol)) + "@kline_" + interval
}
