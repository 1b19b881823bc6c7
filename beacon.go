// Package beacon is a client-side telemetry beacon. Hosts enqueue
// structured events and free-text logs; the client persists them in
// durable queues and delivers them to a collector in small batches,
// retrying transient failures with linear backoff.
package beacon

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBaseURL is the collector used when Config.BaseURL is empty.
const DefaultBaseURL = "https://collect.beacon.dev"

// Config configures a Client. APIKey and OrgName are required.
type Config struct {
	APIKey     string
	OrgName    string
	AppVersion string

	// BaseURL of the collector. A URL stored with SetBaseURL takes precedence.
	BaseURL string

	// DeviceTag replaces the generated device tag when set.
	DeviceTag string

	// Platform labels sent with every bundle. Zero means DefaultPlatform.
	Platform Platform

	// Storage holds the queues and identity. It is owned by the host and
	// not closed by Client.Close. When nil, Dir selects a badger store
	// owned by the client; when Dir is empty too, values live in memory.
	Storage   Storage
	Dir       string
	Namespace string

	Transport  Transport
	Tokens     TokenSource
	Clock      clockwork.Clock
	Logger     *slog.Logger
	ErrorSink  func(error)
	Registerer prometheus.Registerer

	BatchSize      int
	RetryBaseDelay time.Duration
	// MaxRetryDelay caps the linear backoff. Zero leaves it unbounded.
	MaxRetryDelay time.Duration
	HTTPTimeout   time.Duration

	// HoldDelivery keeps records queued until Flush. Neither Open nor an
	// enqueue starts a send, and each Flush sends one batch per queue.
	HoldDelivery bool

	DisableAutoEvents bool
	DAUCheckInterval  time.Duration
	DAUWindow         time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Platform == (Platform{}) {
		cfg.Platform = DefaultPlatform()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Tokens == nil {
		cfg.Tokens = uuidTokens{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = NewHTTPTransport(cfg.HTTPTimeout)
	}
	if cfg.DAUCheckInterval <= 0 {
		cfg.DAUCheckInterval = 12 * time.Hour
	}
	if cfg.DAUWindow <= 0 {
		cfg.DAUWindow = 24 * time.Hour
	}
	return cfg
}

func (cfg Config) validate() error {
	if cfg.APIKey == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}
	if cfg.OrgName == "" {
		return fmt.Errorf("%w: org name is required", ErrInvalidConfig)
	}
	return nil
}

// Client is the handle for one telemetry pipeline.
type Client struct {
	cfg       Config
	store     Storage
	ownsStore bool
	clock     clockwork.Clock
	logger    *slog.Logger

	identity   *identityStore
	normalizer *normalizer
	events     *durableQueue[EventRecord]
	logs       *durableQueue[LogRecord]
	eventCtl   *controller
	logCtl     *controller
	ready      atomic.Bool
	metrics    *metrics
	auto       *autoEvents

	enqueueMu sync.Mutex
	closed    bool
	mu        sync.RWMutex
}

// Open builds a client, loads its queues, reconciles the event index
// counter, starts the automatic events and schedules delivery of
// anything left over from a previous run.
func Open(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:    cfg,
		store:  cfg.Storage,
		clock:  cfg.Clock,
		logger: cfg.Logger.With("component", "beacon"),
	}

	if c.store == nil {
		if cfg.Dir != "" {
			store, err := OpenBadgerStorage(cfg.Dir)
			if err != nil {
				return nil, fmt.Errorf("open storage: %w", err)
			}
			c.store = store
			c.ownsStore = true
		} else {
			c.store = NewMemoryStorage()
			c.ownsStore = true
		}
	}

	if err := c.load(); err != nil {
		if c.ownsStore {
			c.store.Close()
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	c.metrics = newMetrics(cfg.Registerer)
	c.identity.reconcile(c.events.Snapshot())

	ids := newRequestIDs()
	c.eventCtl = c.newController(queueEvents, &eventSource{client: c, queue: c.events, max: cfg.BatchSize}, ids)
	c.logCtl = c.newController(queueLogs, &logSource{client: c, queue: c.logs, max: cfg.BatchSize}, ids)
	c.ready.Store(true)

	c.metrics.depth.WithLabelValues(queueEvents).Set(float64(c.events.Len()))
	c.metrics.depth.WithLabelValues(queueLogs).Set(float64(c.logs.Len()))

	if !cfg.DisableAutoEvents {
		c.startAutoEvents()
	}
	c.eventCtl.notify()
	c.logCtl.notify()

	c.logger.Info("beacon client opened",
		"device_tag", c.identity.DeviceTag(),
		"pending_events", c.events.Len(),
		"pending_logs", c.logs.Len(),
	)
	return c, nil
}

// load reads identity and both queues. Malformed values are reported and
// start empty; a failed read aborts so nothing persisted is overwritten.
func (c *Client) load() error {
	keys := keyspace(c.cfg.Namespace)
	identity, err := loadIdentity(c.store, keys, c.cfg.Tokens, c.cfg.DeviceTag, c.report)
	if err != nil {
		return err
	}
	c.identity = identity
	c.normalizer = &normalizer{identity: identity, clock: c.clock}

	if c.events, err = loadQueue[EventRecord](c.store, keys.key(keyEventList)); err != nil {
		if c.events == nil {
			return err
		}
		c.report(err)
	}
	if c.logs, err = loadQueue[LogRecord](c.store, keys.key(keyLogList)); err != nil {
		if c.logs == nil {
			return err
		}
		c.report(err)
	}
	return nil
}

func (c *Client) newController(name string, source batchSource, ids *requestIDs) *controller {
	return &controller{
		name:      name,
		source:    source,
		transport: c.cfg.Transport,
		ids:       ids,
		clock:     c.clock,
		ready:     &c.ready,
		baseDelay: c.cfg.RetryBaseDelay,
		maxDelay:  c.cfg.MaxRetryDelay,
		held:      c.cfg.HoldDelivery,
		report:    c.report,
		logger:    c.logger.With("queue", name),
		metrics:   c.metrics,
	}
}

// report routes a non-fatal error to the configured sink.
func (c *Client) report(err error) {
	if err == nil {
		return
	}
	if c.cfg.ErrorSink != nil {
		c.cfg.ErrorSink(err)
		return
	}
	c.logger.Error("beacon error", "error", err)
}

// Close stops the automatic events and pending timers, waits for
// in-flight sends to finish and closes storage the client opened.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	if c.auto != nil {
		c.auto.cancel()
		<-c.auto.done
	}
	c.eventCtl.close()
	c.logCtl.close()

	if c.ownsStore {
		return c.store.Close()
	}
	return nil
}

// Event enqueues a plain event.
func (c *Client) Event(props Props) (EventRecord, error) {
	return c.trackEvent(TypeEvent, props)
}

// EconomyEvent enqueues a spend. spend_currency and spend_amount are required.
func (c *Client) EconomyEvent(props Props) (EventRecord, error) {
	return c.trackEvent(TypeEconomy, props)
}

// MessageSendEvent enqueues a message send. sender_tag and at least one
// recipient are required.
func (c *Client) MessageSendEvent(props Props) (EventRecord, error) {
	return c.trackEvent(TypeMessageSend, props)
}

// Track enqueues a typed input.
func (c *Client) Track(in Input) error {
	return in.track(c)
}

func (c *Client) trackEvent(kind EventType, props Props) (EventRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return EventRecord{}, ErrClosed
	}

	rec, err := c.normalizer.event(kind, props)
	if err != nil {
		return EventRecord{}, err
	}
	return c.enqueueEvent(rec), nil
}

// enqueueEvent assigns the next index and appends under one lock so
// queue order always matches index order. Callers hold c.mu.RLock.
func (c *Client) enqueueEvent(rec EventRecord) EventRecord {
	c.enqueueMu.Lock()
	rec.EventIndex = c.identity.takeIndex()
	err := c.events.Append(rec)
	c.enqueueMu.Unlock()
	if err != nil {
		c.report(fmt.Errorf("beacon: persist event queue: %w", err))
	}

	c.metrics.enqueued.WithLabelValues(queueEvents).Inc()
	c.metrics.depth.WithLabelValues(queueEvents).Set(float64(c.events.Len()))
	c.eventCtl.notify()
	return rec
}

// Log enqueues a log line built from args, joined by spaces.
func (c *Client) Log(args ...any) (LogRecord, error) {
	return c.LogEvent(Props{"log_line": formatLogArgs(args)})
}

// LogEvent enqueues a structured log record.
func (c *Client) LogEvent(props Props) (LogRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return LogRecord{}, ErrClosed
	}

	rec, err := c.normalizer.log(props)
	if err != nil {
		return LogRecord{}, err
	}
	if err := c.logs.Append(rec); err != nil {
		c.report(fmt.Errorf("beacon: persist log queue: %w", err))
	}

	c.metrics.enqueued.WithLabelValues(queueLogs).Inc()
	c.metrics.depth.WithLabelValues(queueLogs).Set(float64(c.logs.Len()))
	c.logCtl.notify()
	return rec, nil
}

// Flush starts delivery of both queues now, ignoring any backoff delay.
func (c *Client) Flush() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	if !c.ready.Load() {
		return ErrNotReady
	}
	c.eventCtl.flush()
	c.logCtl.flush()
	return nil
}

// IsReady reports whether the client still delivers. It turns false
// permanently after the collector rejects the credentials.
func (c *Client) IsReady() bool {
	return c.ready.Load()
}

// SetUserTag attaches tag to future records. An empty tag clears it.
func (c *Client) SetUserTag(tag string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.identity.setUserTag(tag)
}

// ClearUserTag removes the user tag and its persisted value.
func (c *Client) ClearUserTag() error {
	return c.SetUserTag("")
}

// SetBaseURL persists a collector URL that overrides Config.BaseURL,
// including for future clients on the same storage. An empty url
// removes the override.
func (c *Client) SetBaseURL(url string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.identity.setBaseURL(url)
}

// DeviceTag returns the persistent identifier of this installation.
func (c *Client) DeviceTag() string { return c.identity.DeviceTag() }

// SessionKey returns the group tag shared by every event of this Open.
func (c *Client) SessionKey() string { return c.identity.SessionKey() }

// UserTag returns the current user tag, or "" when none is set.
func (c *Client) UserTag() string { return c.identity.UserTag() }

// Pending returns the number of queued events and logs.
func (c *Client) Pending() (events, logs int) {
	return c.events.Len(), c.logs.Len()
}

// Status is a snapshot of the client for diagnostics.
type Status struct {
	Ready      bool        `json:"ready" yaml:"ready"`
	DeviceTag  string      `json:"device_tag" yaml:"device_tag"`
	SessionKey string      `json:"session_key" yaml:"session_key"`
	UserTag    string      `json:"user_tag,omitempty" yaml:"user_tag,omitempty"`
	BaseURL    string      `json:"base_url" yaml:"base_url"`
	Events     QueueStatus `json:"events" yaml:"events"`
	Logs       QueueStatus `json:"logs" yaml:"logs"`
}

// Status returns the current state of both pipelines.
func (c *Client) Status() Status {
	return Status{
		Ready:      c.ready.Load(),
		DeviceTag:  c.identity.DeviceTag(),
		SessionKey: c.identity.SessionKey(),
		UserTag:    c.identity.UserTag(),
		BaseURL:    c.baseURL(),
		Events:     c.eventCtl.status(),
		Logs:       c.logCtl.status(),
	}
}
