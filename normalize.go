package beacon

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
)

// Props is the raw property bag accepted by the Event, EconomyEvent,
// MessageSendEvent and LogEvent entry points. Unknown keys are ignored.
type Props map[string]any

// Maximum field lengths, in characters.
const (
	maxShortString = 32
	maxLongString  = 64
	maxLogLine     = 65535
	maxHostname    = 64
	maxFilename    = 256
	maxLogLevel    = 64
	maxLogTag      = 62
	maxRemoteAddr  = 64
)

// datetimeLayout matches JavaScript's Date.toISOString for UTC times.
const datetimeLayout = "2006-01-02T15:04:05.000Z07:00"

// normalizer turns property bags into records. It stamps everything
// except the event index, which the client assigns under its enqueue lock.
type normalizer struct {
	identity *identityStore
	clock    clockwork.Clock
}

func (n *normalizer) event(kind EventType, props Props) (EventRecord, error) {
	if props == nil {
		return EventRecord{}, &ValidationError{Record: string(kind), Reason: "properties must be an object"}
	}

	rec := EventRecord{
		Type:          kind,
		EventDatetime: n.datetime(props),
		GroupTag:      n.identity.SessionKey(),
		DeviceTag:     truncate(n.identity.DeviceTag(), maxLongString),
		UserTag:       truncate(n.identity.UserTag(), maxLongString),

		Kingdom: text(props, "kingdom", maxShortString),
		Phylum:  text(props, "phylum", maxShortString),
		Class:   text(props, "class", maxShortString),
		Order:   text(props, "order", maxShortString),
		Family:  text(props, "family", maxShortString),
		Genus:   text(props, "genus", maxShortString),
		Species: text(props, "species", maxShortString),

		Float1: number(props, "float1"),
		Float2: number(props, "float2"),
		Float3: number(props, "float3"),
		Float4: number(props, "float4"),
	}

	switch kind {
	case TypeEconomy:
		currency, ok := props["spend_currency"].(string)
		if !ok || currency == "" {
			return EventRecord{}, &ValidationError{Record: string(kind), Field: "spend_currency", Reason: "must be a non-empty string"}
		}
		amount := number(props, "spend_amount")
		if amount == nil {
			return EventRecord{}, &ValidationError{Record: string(kind), Field: "spend_amount", Reason: "must be a finite number"}
		}
		rec.SpendCurrency = truncate(currency, maxShortString)
		rec.SpendAmount = amount
		rec.SpendType = text(props, "spend_type", maxShortString)

	case TypeMessageSend:
		rec.SenderTag = text(props, "sender_tag", maxLongString)
		if rec.SenderTag == "" {
			return EventRecord{}, &ValidationError{Record: string(kind), Field: "sender_tag", Reason: "is required"}
		}
		rec.RecipientTags = recipients(props)
		if len(rec.RecipientTags) == 0 {
			return EventRecord{}, &ValidationError{Record: string(kind), Field: "recipient_tag", Reason: "or a non-empty recipient_tags list is required"}
		}
	}

	return rec, nil
}

func (n *normalizer) log(props Props) (LogRecord, error) {
	if props == nil {
		return LogRecord{}, &ValidationError{Record: "log", Reason: "properties must be an object"}
	}

	rec := LogRecord{
		EventDatetime: n.datetime(props),
		LogLine:       text(props, "log_line", maxLogLine),
		Hostname:      text(props, "hostname", maxHostname),
		Filename:      text(props, "filename", maxFilename),
		LogLevel:      text(props, "log_level", maxLogLevel),
		DeviceTag:     text(props, "device_tag", maxLogTag),
		UserTag:       text(props, "user_tag", maxLogTag),
		RemoteAddress: text(props, "remote_address", maxRemoteAddr),
		ResponseBytes: number(props, "response_bytes"),
		ResponseMs:    number(props, "response_ms"),
	}
	if rec.DeviceTag == "" {
		rec.DeviceTag = truncate(n.identity.DeviceTag(), maxLogTag)
	}
	if rec.UserTag == "" {
		rec.UserTag = truncate(n.identity.UserTag(), maxLogTag)
	}
	return rec, nil
}

// datetime keeps a caller-supplied event_datetime and otherwise stamps now.
func (n *normalizer) datetime(props Props) string {
	switch v := props["event_datetime"].(type) {
	case string:
		if v != "" {
			return v
		}
	case time.Time:
		if !v.IsZero() {
			return v.UTC().Format(datetimeLayout)
		}
	}
	return n.clock.Now().UTC().Format(datetimeLayout)
}

// recipients concatenates recipient_tag and recipient_tags, in that order.
func recipients(props Props) []string {
	var out []string
	if tag := text(props, "recipient_tag", maxLongString); tag != "" {
		out = append(out, tag)
	}
	switch list := props["recipient_tags"].(type) {
	case []string:
		for _, v := range list {
			if s, ok := toText(v); ok {
				out = append(out, truncate(s, maxLongString))
			}
		}
	case []any:
		for _, v := range list {
			if s, ok := toText(v); ok {
				out = append(out, truncate(s, maxLongString))
			}
		}
	}
	return out
}

// text reads a string field, stringifying primitives and truncating to max.
// Absent, nil and empty values yield "".
func text(props Props, name string, max int) string {
	s, ok := toText(props[name])
	if !ok {
		return ""
	}
	return truncate(s, max)
}

// number reads a numeric field. Non-finite or unparsable values yield nil.
func number(props Props, name string) *float64 {
	f, ok := toNumber(props[name])
	if !ok {
		return nil
	}
	return &f
}

func toText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case bool:
		return strconv.FormatBool(x), true
	case json.Number:
		return x.String(), x != ""
	case fmt.Stringer:
		s := x.String()
		return s, s != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, rv.Type().Bits()), true
	case reflect.String:
		s := rv.String()
		return s, s != ""
	}
	return "", false
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// truncate cuts s to its first max characters.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}

// formatLogArgs joins Log arguments the way a console logger would.
func formatLogArgs(args []any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			parts = append(parts, v)
		case error:
			parts = append(parts, v.Error())
		case fmt.Stringer:
			parts = append(parts, v.String())
		default:
			b, err := json.Marshal(v)
			if err != nil {
				parts = append(parts, fmt.Sprint(v))
				continue
			}
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, " ")
}
