// Package webhook delivers domain events to an outbound HTTP endpoint with
// retry and optional HMAC signing.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MiKapsDev/Lion-City/internal/events"
)

// SignatureHeader carries the hex HMAC-SHA256 of "<timestamp>.<body>".
const SignatureHeader = "X-Lioncity-Signature"

// TimestampHeader carries the unix seconds used in the signature.
const TimestampHeader = "X-Lioncity-Timestamp"

// Signer returns headers that let the receiver verify a payload.
type Signer interface {
	Sign(payload []byte, secret string) map[string]string
}

// HMACSigner signs payloads with HMAC-SHA256 over the timestamp and body.
type HMACSigner struct {
	Now func() time.Time
}

// Sign implements Signer.
func (s HMACSigner) Sign(payload []byte, secret string) map[string]string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := strconv.FormatInt(now().Unix(), 10)
	return map[string]string{
		TimestampHeader: ts,
		SignatureHeader: Signature(payload, secret, ts),
	}
}

// Signature computes the hex digest a receiver should compare against.
func Signature(payload []byte, secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is one queued domain event.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Delivery records a single delivery attempt.
type Delivery struct {
	EventID    string    `json:"event_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config configures a Dispatcher.
type Config struct {
	URL         string
	Secret      string
	Signer      Signer
	Logger      *slog.Logger
	MaxRetries  int
	RetryDelay  time.Duration
	EventPrefix string
	AutoDeliver bool
	Client      *http.Client
	// MaxQueue bounds both the pending queue and the delivery history;
	// the oldest entries are dropped first.
	MaxQueue int
}

// Dispatcher queues events and posts them to the configured URL.
type Dispatcher struct {
	mu          sync.RWMutex
	url         string
	secret      string
	signer      Signer
	logger      *slog.Logger
	queue       []Event
	deliveries  []Delivery
	maxRetries  int
	retryDelay  time.Duration
	client      *http.Client
	eventPrefix string
	autoDeliver bool
	maxQueue    int
	wg          sync.WaitGroup
}

// DefaultMaxQueue is the queue bound used when Config.MaxQueue is zero.
const DefaultMaxQueue = 256

// NewDispatcher creates a dispatcher. Zero config values get defaults: three
// attempts, one second between them, "evt" ids, HMAC signing and a
// DefaultMaxQueue bound.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.EventPrefix == "" {
		cfg.EventPrefix = "evt"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Signer == nil {
		cfg.Signer = HMACSigner{}
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = DefaultMaxQueue
	}

	return &Dispatcher{
		url:         cfg.URL,
		secret:      cfg.Secret,
		signer:      cfg.Signer,
		logger:      cfg.Logger,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      cfg.Client,
		eventPrefix: cfg.EventPrefix,
		autoDeliver: cfg.AutoDeliver,
		maxQueue:    cfg.MaxQueue,
	}
}

// SetURL updates the delivery URL.
func (d *Dispatcher) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// Enqueue queues an event. With AutoDeliver the event is also posted in the
// background and removed from the queue once delivered. Events that exhaust
// their retries stay queued for Flush until the queue bound evicts them.
func (d *Dispatcher) Enqueue(eventType string, payload map[string]any) Event {
	evt := Event{
		ID:        d.eventPrefix + "_" + uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	d.mu.Lock()
	d.queue = append(d.queue, evt)
	dropped := trim(&d.queue, d.maxQueue)
	auto := d.autoDeliver
	d.mu.Unlock()

	if dropped > 0 {
		d.logger.Warn("webhook queue full, dropping oldest events", "dropped", dropped, "max", d.maxQueue)
	}

	if auto {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.deliver(context.Background(), evt); err != nil {
				d.logger.Warn("webhook delivery failed", "event_id", evt.ID, "type", evt.Type, "error", err)
				return
			}
			d.remove(evt.ID)
		}()
	}
	return evt
}

// Forward subscribes the dispatcher to every topic on bus. The returned func
// stops forwarding.
func (d *Dispatcher) Forward(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.Event) {
		d.Enqueue(string(e.Topic), e.Data)
	})
}

// Flush delivers all queued events synchronously and empties the queue.
// The last delivery error, if any, is returned.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	pending := d.queue
	d.queue = nil
	d.mu.Unlock()

	var lastErr error
	for _, evt := range pending {
		if err := d.deliver(ctx, evt); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// FlushWebhooks implements admin.WebhookFlusher.
func (d *Dispatcher) FlushWebhooks(ctx context.Context) error {
	return d.Flush(ctx)
}

// Wait blocks until background deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, evt Event) error {
	d.mu.RLock()
	url, secret, signer := d.url, d.secret, d.signer
	d.mu.RUnlock()

	if url == "" {
		d.logger.Debug("no webhook URL configured, skipping delivery", "event_id", evt.ID)
		return nil
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			for k, v := range signer.Sign(body, secret) {
				req.Header.Set(k, v)
			}
		}

		delivery := Delivery{EventID: evt.ID, URL: url, Attempt: attempt, Timestamp: time.Now().UTC()}
		resp, err := d.client.Do(req)
		if err != nil {
			delivery.Error = err.Error()
			lastErr = err
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			delivery.StatusCode = resp.StatusCode
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				d.record(delivery)
				return nil
			}
			lastErr = fmt.Errorf("webhook delivery failed: status %d", resp.StatusCode)
			delivery.Error = lastErr.Error()
		}
		d.record(delivery)

		if attempt < d.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retryDelay):
			}
		}
	}
	return lastErr
}

func (d *Dispatcher) record(del Delivery) {
	d.mu.Lock()
	d.deliveries = append(d.deliveries, del)
	trim(&d.deliveries, d.maxQueue)
	d.mu.Unlock()
}

// trim drops the oldest elements of s beyond limit and reports how many.
func trim[T any](s *[]T, limit int) int {
	over := len(*s) - limit
	if over <= 0 {
		return 0
	}
	*s = append((*s)[:0:0], (*s)[over:]...)
	return over
}

func (d *Dispatcher) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.queue {
		if e.ID == id {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			return
		}
	}
}

// Deliveries returns every delivery attempt recorded so far.
func (d *Dispatcher) Deliveries() []Delivery {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Delivery, len(d.deliveries))
	copy(out, d.deliveries)
	return out
}

// QueuedEvents returns events not yet flushed.
func (d *Dispatcher) QueuedEvents() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.queue))
	copy(out, d.queue)
	return out
}

// Reset drops queued events and delivery history.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = nil
	d.deliveries = nil
}
