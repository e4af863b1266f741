package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/gorilla/websocket"
)

const readBuffer = 1024

// Stream implements a MarketStream backed by the Finnhub WebSocket feed.
type Stream struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	tier           float64
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewStream creates a Finnhub live quote stream for the given symbols.
func NewStream(apiKey, websocketURL string, symbols []string, tier float64, reconnectDelay, pingInterval time.Duration) *Stream {
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		tier:           tier,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	log.Printf("finnhub: connected")
	return nil
}

func (s *Stream) current() (*websocket.Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.connected && s.conn != nil
}

type subscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// Subscribe subscribes to the configured symbols.
func (s *Stream) Subscribe(ctx context.Context) error {
	conn, ok := s.current()
	if !ok {
		return fmt.Errorf("finnhub: not connected")
	}
	for _, sym := range s.symbols {
		if err := conn.WriteJSON(subscribeMsg{Type: "subscribe", Symbol: sym}); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
		log.Printf("finnhub: subscribed %s", sym)
	}
	return nil
}

type wsTrade struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
	Time   int64   `json:"t"` // ms since epoch
}

type wsEnvelope struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

// Read streams live quotes and errors. Both channels close when the read
// loop exits; a value on errs means the caller should Reconnect.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	quotes := make(chan *models.Quote, readBuffer)
	errs := make(chan error, 1)
	go s.pingLoop(ctx)
	go s.readLoop(ctx, quotes, errs)
	return quotes, errs
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if conn, ok := s.current(); ok {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, quotes chan<- *models.Quote, errs chan<- error) {
	defer close(quotes)
	defer close(errs)

	for ctx.Err() == nil {
		conn, ok := s.current()
		if !ok {
			errs <- fmt.Errorf("finnhub: not connected")
			return
		}
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				errs <- fmt.Errorf("finnhub read: %w", err)
			}
			return
		}
		for _, q := range s.parseTrades(frame) {
			select {
			case quotes <- q:
			default:
				// drop on backpressure
			}
		}
	}
}

// parseTrades decodes one frame. Non-trade frames and unparseable payloads
// yield nothing.
func (s *Stream) parseTrades(frame []byte) []*models.Quote {
	var env wsEnvelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type != "trade" {
		return nil
	}
	out := make([]*models.Quote, 0, len(env.Data))
	for _, t := range env.Data {
		out = append(out, &models.Quote{
			Symbol:     t.Symbol,
			Timestamp:  time.UnixMilli(t.Time).UTC(),
			Price:      t.Price,
			Volume:     t.Volume,
			Source:     name,
			Confidence: s.tier,
		})
	}
	return out
}

// Reconnect closes the connection, waits out the redial delay, then dials
// and resubscribes.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}

	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	_, ok := s.current()
	return ok
}
