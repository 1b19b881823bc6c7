package beacon

import "time"

// Input is a typed record accepted by Client.Track. It is implemented
// by EventInput, EconomyInput, MessageSendInput and LogInput only.
// Typed inputs go through the same normalizer as property bags, so
// truncation and dropping rules apply identically.
type Input interface {
	track(c *Client) error
}

// Taxonomy is the seven-level classification shared by every event.
type Taxonomy struct {
	Kingdom string
	Phylum  string
	Class   string
	Order   string
	Family  string
	Genus   string
	Species string
}

// EventInput is a plain event.
type EventInput struct {
	Taxonomy
	Float1, Float2, Float3, Float4 *float64

	// Datetime overrides the enqueue time when set.
	Datetime time.Time
}

// EconomyInput records a spend.
type EconomyInput struct {
	EventInput
	Currency  string
	Amount    float64
	SpendType string
}

// MessageSendInput records a message from one tag to one or more others.
type MessageSendInput struct {
	EventInput
	SenderTag     string
	RecipientTag  string
	RecipientTags []string
}

// LogInput is a structured log line.
type LogInput struct {
	Line          string
	Hostname      string
	Filename      string
	Level         string
	RemoteAddress string
	DeviceTag     string
	UserTag       string
	ResponseBytes *float64
	ResponseMs    *float64
	Datetime      time.Time
}

func (in EventInput) props() Props {
	p := Props{
		"kingdom": in.Kingdom,
		"phylum":  in.Phylum,
		"class":   in.Class,
		"order":   in.Order,
		"family":  in.Family,
		"genus":   in.Genus,
		"species": in.Species,
	}
	setFloat(p, "float1", in.Float1)
	setFloat(p, "float2", in.Float2)
	setFloat(p, "float3", in.Float3)
	setFloat(p, "float4", in.Float4)
	if !in.Datetime.IsZero() {
		p["event_datetime"] = in.Datetime
	}
	return p
}

func (in EventInput) track(c *Client) error {
	_, err := c.Event(in.props())
	return err
}

func (in EconomyInput) track(c *Client) error {
	p := in.EventInput.props()
	p["spend_currency"] = in.Currency
	p["spend_amount"] = in.Amount
	p["spend_type"] = in.SpendType
	_, err := c.EconomyEvent(p)
	return err
}

func (in MessageSendInput) track(c *Client) error {
	p := in.EventInput.props()
	p["sender_tag"] = in.SenderTag
	p["recipient_tag"] = in.RecipientTag
	p["recipient_tags"] = in.RecipientTags
	_, err := c.MessageSendEvent(p)
	return err
}

func (in LogInput) track(c *Client) error {
	p := Props{
		"log_line":       in.Line,
		"hostname":       in.Hostname,
		"filename":       in.Filename,
		"log_level":      in.Level,
		"remote_address": in.RemoteAddress,
		"device_tag":     in.DeviceTag,
		"user_tag":       in.UserTag,
	}
	setFloat(p, "response_bytes", in.ResponseBytes)
	setFloat(p, "response_ms", in.ResponseMs)
	if !in.Datetime.IsZero() {
		p["event_datetime"] = in.Datetime
	}
	_, err := c.LogEvent(p)
	return err
}

func setFloat(p Props, name string, v *float64) {
	if v != nil {
		p[name] = *v
	}
}
