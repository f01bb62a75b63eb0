package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ValueFlow/internal/domain/models"
	drepo "ValueFlow/internal/domain/repository"
	xhttp "ValueFlow/pkg/http"

	"github.com/gorilla/websocket"
)

// Client implements a BatchFeed backed by an upstream observation WebSocket.
// The upstream pushes framed batches per source; non-batch frames (acks,
// heartbeats) are skipped.
type Client struct {
	apiKey         string
	websocketURL   string
	restURL        string
	sources        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	rest *xhttp.Client

	conn      *websocket.Conn
	connected bool
}

// New creates a new WebSocket BatchFeed. restURL may be empty; snapshots are
// then skipped.
func New(apiKey, websocketURL, restURL string, sources []string, reconnectDelay, pingInterval time.Duration) drepo.BatchFeed {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		restURL:        restURL,
		sources:        sources,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		rest:           xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
	}
}

// Connect establishes the WebSocket connection and subscribes to sources.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("feed: connected")

	for _, s := range c.sources {
		msg := map[string]string{"type": "subscribe", "source": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Printf("feed: subscribed %s", s)
	}
	return nil
}

type wireRecord struct {
	T  int64    `json:"t"` // unix nanos
	V  *float64 `json:"v"`
	I  *int64   `json:"i,omitempty"` // item id (prices)
	SI *int64   `json:"si,omitempty"`
	TI *int64   `json:"ti,omitempty"`
}

type wireBatch struct {
	Type       string       `json:"type"`
	BatchID    string       `json:"batch_id"`
	Source     string       `json:"source"`
	Kind       string       `json:"kind"`
	Confidence float64      `json:"confidence"`
	Records    []wireRecord `json:"records"`
}

// Read streams observation batches and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.ObservationBatch, <-chan error) {
	batches := make(chan *models.ObservationBatch, 64)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(batches)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m wireBatch
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-batch frames
					continue
				}
				if m.Type != "batch" || len(m.Records) == 0 {
					continue
				}
				batch := decodeBatch(&m)
				select {
				case batches <- batch:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return batches, errs
}

func decodeBatch(m *wireBatch) *models.ObservationBatch {
	records := make([]models.RawRecord, 0, len(m.Records))
	for _, r := range m.Records {
		ts := time.Unix(0, r.T)
		records = append(records, models.RawRecord{
			Timestamp:    &ts,
			Value:        r.V,
			ItemID:       r.I,
			SourceItemID: r.SI,
			TargetItemID: r.TI,
		})
	}
	return &models.ObservationBatch{
		BatchID:    m.BatchID,
		Source:     m.Source,
		Kind:       models.ObservationKind(m.Kind),
		Confidence: m.Confidence,
		Records:    records,
	}
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
