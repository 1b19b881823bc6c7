package beacon

// EventType tags an event record with its schema.
type EventType string

const (
	TypeEvent       EventType = "event"
	TypeEconomy     EventType = "economy"
	TypeInstall     EventType = "install"
	TypeDAU         EventType = "dau"
	TypeMessageSend EventType = "message_send"
)

// EventRecord is a normalized event as it is queued and delivered.
// Fields outside the schema of Type are always empty.
type EventRecord struct {
	// Type selects the schema of the record.
	Type EventType `json:"type"`

	// EventIndex is strictly increasing per device and identifies the
	// record for removal after delivery.
	EventIndex uint64 `json:"event_index"`

	// EventDatetime is when the event occurred, ISO-8601.
	EventDatetime string `json:"event_datetime"`

	// GroupTag is the session key of the client that enqueued the record.
	GroupTag string `json:"group_tag"`

	DeviceTag string `json:"device_tag"`
	UserTag   string `json:"user_tag,omitempty"`

	Kingdom string `json:"kingdom,omitempty"`
	Phylum  string `json:"phylum,omitempty"`
	Class   string `json:"class,omitempty"`
	Order   string `json:"order,omitempty"`
	Family  string `json:"family,omitempty"`
	Genus   string `json:"genus,omitempty"`
	Species string `json:"species,omitempty"`

	Float1 *float64 `json:"float1,omitempty"`
	Float2 *float64 `json:"float2,omitempty"`
	Float3 *float64 `json:"float3,omitempty"`
	Float4 *float64 `json:"float4,omitempty"`

	// Economy fields.
	SpendCurrency string   `json:"spend_currency,omitempty"`
	SpendAmount   *float64 `json:"spend_amount,omitempty"`
	SpendType     string   `json:"spend_type,omitempty"`

	// Message-send fields.
	SenderTag     string   `json:"sender_tag,omitempty"`
	RecipientTags []string `json:"recipient_tags,omitempty"`
}

// LogRecord is a normalized free-text log line. Log records have no
// identity of their own; the log queue is strictly FIFO.
type LogRecord struct {
	EventDatetime string   `json:"event_datetime"`
	LogLine       string   `json:"log_line,omitempty"`
	Hostname      string   `json:"hostname,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	LogLevel      string   `json:"log_level,omitempty"`
	DeviceTag     string   `json:"device_tag,omitempty"`
	UserTag       string   `json:"user_tag,omitempty"`
	RemoteAddress string   `json:"remote_address,omitempty"`
	ResponseBytes *float64 `json:"response_bytes,omitempty"`
	ResponseMs    *float64 `json:"response_ms,omitempty"`
}
