package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// deliveryState is the controller's position in the send cycle.
type deliveryState int

const (
	stateIdle deliveryState = iota
	stateScheduled
	stateSending
)

func (s deliveryState) String() string {
	switch s {
	case stateScheduled:
		return "scheduled"
	case stateSending:
		return "sending"
	default:
		return "idle"
	}
}

// batch is one outgoing bundle plus the eviction of its records.
type batch struct {
	url   string
	body  []byte
	count int
	evict func() error
}

// batchSource builds batches from the head of one durable queue.
type batchSource interface {
	pending() int
	next() (*batch, error)
}

// controller drives delivery for one queue. At most one send is in
// flight, and a pending timer is never duplicated.
type controller struct {
	name      string
	source    batchSource
	transport Transport
	ids       *requestIDs
	clock     clockwork.Clock
	ready     *atomic.Bool
	baseDelay time.Duration
	maxDelay  time.Duration
	held      bool
	report    func(error)
	logger    *slog.Logger
	metrics   *metrics

	mu       sync.Mutex
	state    deliveryState
	timer    clockwork.Timer
	failures int
	closed   bool
	inflight sync.WaitGroup
}

// delayLocked is the linear backoff: failures × baseDelay, optionally capped.
func (c *controller) delayLocked() time.Duration {
	d := time.Duration(c.failures) * c.baseDelay
	if c.maxDelay > 0 && d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}

// notify arms delivery after an enqueue.
func (c *controller) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduleLocked()
}

// scheduleLocked moves an idle controller with pending records to
// Scheduled, or straight to Sending when no delay applies. A held
// controller only sends on flush.
func (c *controller) scheduleLocked() {
	if c.held || c.closed || !c.ready.Load() || c.state != stateIdle || c.source.pending() == 0 {
		return
	}
	delay := c.delayLocked()
	if delay <= 0 {
		c.beginLocked()
		return
	}
	c.state = stateScheduled
	c.timer = c.clock.AfterFunc(delay, c.fire)
	c.logger.Debug("delivery scheduled", "delay", delay, "failures", c.failures)
}

// fire is the timer callback.
func (c *controller) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateScheduled || c.closed {
		return
	}
	c.timer = nil
	c.beginLocked()
}

// flush sends immediately, skipping any backoff delay. The failure
// counter is left alone. A send already in flight is not duplicated.
func (c *controller) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.ready.Load() {
		return
	}
	switch c.state {
	case stateSending:
		return
	case stateScheduled:
		if !c.timer.Stop() {
			// Already fired; fire will start the send.
			return
		}
		c.timer = nil
		c.state = stateIdle
	}
	if c.source.pending() == 0 {
		return
	}
	c.beginLocked()
}

func (c *controller) beginLocked() {
	c.state = stateSending
	c.inflight.Add(1)
	go c.run()
}

// run performs one send and applies its outcome.
func (c *controller) run() {
	defer c.inflight.Done()

	b, err := c.source.next()
	if err != nil {
		c.finish(nil, "", fmt.Errorf("beacon: build %s batch: %w", c.name, err))
		return
	}
	if b == nil {
		c.finish(nil, "", nil)
		return
	}

	requestID := c.ids.next(c.clock.Now())
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set("X-Request-Id", requestID)

	// Sends are not cancelled on Close; the HTTP timeout bounds them.
	status, body, sendErr := c.transport.Do(context.Background(), http.MethodPost, b.url, b.body, header)
	out := classify(status, body, sendErr)

	c.logger.Debug("delivery attempt",
		"request_id", requestID,
		"records", b.count,
		"outcome", out.Kind.String(),
		"status", out.Status,
	)

	var evictErr error
	if out.Terminal() {
		if err := b.evict(); err != nil {
			evictErr = fmt.Errorf("beacon: evict %s batch: %w", c.name, err)
		}
	}
	c.finish(&out, requestID, evictErr)
}

// finish applies an outcome, re-arms scheduling and reports errors
// outside the lock so the error sink may call back into the client.
func (c *controller) finish(out *Outcome, requestID string, extra error) {
	var reports []error
	if extra != nil {
		reports = append(reports, extra)
	}

	c.mu.Lock()
	c.state = stateIdle
	switch {
	case out == nil && extra != nil:
		c.failures++
	case out == nil:
	case out.Kind == OutcomeSuccess, out.Kind == OutcomeConflict:
		c.failures = 0
	case out.Kind == OutcomeClientError:
		c.failures = 0
		reports = append(reports, &DeliveryError{Queue: c.name, RequestID: requestID, Outcome: *out})
	case out.Kind == OutcomeAuthError:
		c.failures = 0
		c.ready.Store(false)
		reports = append(reports, &DeliveryError{Queue: c.name, RequestID: requestID, Outcome: *out})
	default:
		c.failures++
		if out.Kind == OutcomeServerError {
			reports = append(reports, &DeliveryError{Queue: c.name, RequestID: requestID, Outcome: *out})
		} else {
			c.logger.Warn("delivery failed, will retry",
				"request_id", requestID,
				"outcome", out.Kind.String(),
				"error", out.Err,
				"failures", c.failures,
			)
		}
	}
	if out != nil {
		c.metrics.deliveries.WithLabelValues(c.name, out.Kind.String()).Inc()
	}
	c.metrics.failures.WithLabelValues(c.name).Set(float64(c.failures))
	c.metrics.depth.WithLabelValues(c.name).Set(float64(c.source.pending()))
	c.scheduleLocked()
	c.mu.Unlock()

	for _, err := range reports {
		c.report(err)
	}
}

// close stops the timer and waits for an in-flight send to complete.
// No new sends start afterwards.
func (c *controller) close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state == stateScheduled {
		c.state = stateIdle
	}
	c.mu.Unlock()

	c.inflight.Wait()
}

// QueueStatus is a point-in-time view of one delivery pipeline.
type QueueStatus struct {
	Pending  int    `json:"pending" yaml:"pending"`
	State    string `json:"state" yaml:"state"`
	Failures int    `json:"failures" yaml:"failures"`
}

func (c *controller) status() QueueStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return QueueStatus{
		Pending:  c.source.pending(),
		State:    c.state.String(),
		Failures: c.failures,
	}
}

// eventSource builds session-coherent batches from the event queue.
type eventSource struct {
	client *Client
	queue  *durableQueue[EventRecord]
	max    int
}

func (s *eventSource) pending() int { return s.queue.Len() }

func (s *eventSource) next() (*batch, error) {
	records := eventBatch(s.queue.Head(s.max), s.max)
	if len(records) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(s.client.envelope(records))
	if err != nil {
		return nil, err
	}

	sent := make(map[uint64]struct{}, len(records))
	for _, rec := range records {
		sent[rec.EventIndex] = struct{}{}
	}
	return &batch{
		url:   s.client.trackURL(s.client.clock.Now()),
		body:  body,
		count: len(records),
		evict: func() error {
			_, err := s.queue.RemoveMatching(func(rec EventRecord) bool {
				_, ok := sent[rec.EventIndex]
				return ok
			})
			return err
		},
	}, nil
}

// logSource builds FIFO batches from the log queue.
type logSource struct {
	client *Client
	queue  *durableQueue[LogRecord]
	max    int
}

func (s *logSource) pending() int { return s.queue.Len() }

func (s *logSource) next() (*batch, error) {
	records := logBatch(s.queue.Head(s.max), s.max)
	if len(records) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(s.client.envelope(records))
	if err != nil {
		return nil, err
	}
	n := len(records)
	return &batch{
		url:   s.client.appLogURL(),
		body:  body,
		count: n,
		evict: func() error { return s.queue.RemoveFront(n) },
	}, nil
}
