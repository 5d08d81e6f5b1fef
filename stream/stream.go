package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	dialTimeout      = 20 * time.Second
	pongWait         = 20 * time.Second
	pingPeriod       = 20 * time.Second
	reconnectInitial = 3 * time.Second
	reconnectMax     = 60 * time.Second
	staleThreshold   = 60 * time.Second
	longOutageWarn   = 5 * time.Minute

	// eventBufferSize absorbs a burst of ticks while the consumer
	// goroutine is mid-retry on a venue call; the reader never blocks
	// sending here, it drops and logs instead.
	eventBufferSize = 256
)

type tickerMessage struct {
	Symbol string `json:"s"`
	Price  string `json:"c"`
}

// Stream owns the single outbound ticker connection for one symbol. It
// maintains the latest-price cache and the watch registry that lets the
// Strategy Core react to price crossings without polling. The reader
// goroutine (Run) only ever records the price and pushes it onto
// events; nothing on that goroutine ever calls into venue I/O. A
// consumer reading Events() is expected to call EvaluateWatches for
// each event, which is where OnReach callbacks (and therefore venue
// calls) actually happen.
type Stream struct {
	symbol string

	registry *watchRegistry
	events   chan PriceEvent

	mu            sync.RWMutex
	lastPrice     decimal.Decimal
	lastUpdate    time.Time
	disconnectAt  time.Time
	warnedOutage  bool
	connectedOnce bool

	healthy atomic.Bool
}

// New builds a Stream for symbol. Call Run to start the connect loop.
func New(symbol string) *Stream {
	return &Stream{
		symbol:   strings.ToLower(symbol),
		registry: newWatchRegistry(),
		events:   make(chan PriceEvent, eventBufferSize),
	}
}

// Events returns the channel of observed prices. A single consumer
// goroutine (strategy.Core.RunPriceConsumer) reads this and calls
// EvaluateWatches, keeping every watch callback off the reader goroutine.
func (s *Stream) Events() <-chan PriceEvent {
	return s.events
}

// EvaluateWatches checks every armed watch against price and fires any
// whose condition is now satisfied. Call this only from the single
// price-event consumer goroutine, never from Run's reader goroutine.
func (s *Stream) EvaluateWatches(price decimal.Decimal) {
	s.registry.evaluate(price)
}

// Run dials the venue ticker stream and reconnects with exponential
// backoff until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) {
	backoff := reconnectInitial
	url := fmt.Sprintf("wss://fstream.binance.com/ws/%s@ticker", s.symbol)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			s.onDisconnected()
			log.Printf("⚠️ STREAM: dial failed for %s: %v (retry in %s)", s.symbol, err, backoff)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		log.Printf("✅ STREAM: connected to %s ticker", s.symbol)
		backoff = reconnectInitial
		s.onConnected()

		if err := s.readLoop(ctx, conn); err != nil {
			log.Printf("⚠️ STREAM: connection lost for %s: %v", s.symbol, err)
		}
		conn.Close()
		s.onDisconnected()

		if ctx.Err() != nil {
			return
		}
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > reconnectMax {
		return reconnectMax
	}
	return next
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg tickerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		price, err := decimal.NewFromString(msg.Price)
		if err != nil {
			continue
		}

		s.recordPrice(price)

		select {
		case s.events <- PriceEvent{Price: price, Time: time.Now()}:
		default:
			log.Printf("⚠️ STREAM: event buffer full for %s, dropping tick (consumer busy)", s.symbol)
		}
	}
}

func (s *Stream) recordPrice(price decimal.Decimal) {
	s.mu.Lock()
	s.lastPrice = price
	s.lastUpdate = time.Now()
	s.mu.Unlock()
	s.healthy.Store(true)
}

func (s *Stream) onConnected() {
	s.mu.Lock()
	s.connectedOnce = true
	s.disconnectAt = time.Time{}
	s.warnedOutage = false
	s.mu.Unlock()
}

func (s *Stream) onDisconnected() {
	s.healthy.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnectAt.IsZero() {
		s.disconnectAt = time.Now()
		return
	}
	if !s.warnedOutage && time.Since(s.disconnectAt) >= longOutageWarn {
		s.warnedOutage = true
		log.Printf("❌ STREAM: %s has been disconnected for over %s", s.symbol, longOutageWarn)
	}
}

// IsHealthy reports whether a tick has been observed within the last
// staleThreshold window.
func (s *Stream) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastUpdate.IsZero() {
		return false
	}
	return time.Since(s.lastUpdate) < staleThreshold
}

// LatestPrice returns the most recent observed price and whether one has
// been observed yet.
func (s *Stream) LatestPrice() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPrice, !s.lastUpdate.IsZero()
}

// Watch arms a single-shot price condition. barrierSet gates arming on
// having first observed the price on barrierSide of barrierPx.
func (s *Stream) Watch(target decimal.Decimal, direction Direction, barrierSet bool, barrierPx decimal.Decimal, barrierSide BarrierSide, onReach OnReach) string {
	key := watchKey(target, direction, barrierSet, barrierPx, barrierSide)
	s.registry.add(key, &watch{
		target:      target,
		direction:   direction,
		barrierSet:  barrierSet,
		barrierPx:   barrierPx,
		barrierSide: barrierSide,
		onReach:     onReach,
	})
	log.Printf("👁️ STREAM: watch armed key=%s", key)
	return key
}

// CancelWatch disarms a single watch by the key returned from Watch.
func (s *Stream) CancelWatch(key string) {
	s.registry.remove(key)
}

// CancelAll disarms every outstanding watch, used on strategy reset and
// on shutdown.
func (s *Stream) CancelAll() {
	s.registry.clear()
}
