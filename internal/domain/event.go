package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Event type tags sent by SendGrid in the "event" field.
const (
	EventProcessed        = "processed"
	EventDropped          = "dropped"
	EventDelivered        = "delivered"
	EventDeferred         = "deferred"
	EventBounce           = "bounce"
	EventBlocked          = "blocked"
	EventOpen             = "open"
	EventClick            = "click"
	EventSpamReport       = "spamreport"
	EventUnsubscribe      = "unsubscribe"
	EventGroupUnsubscribe = "group_unsubscribe"
	EventGroupResubscribe = "group_resubscribe"
)

// SubtypeBlocked is the bounce "type" value that marks a blocked delivery.
const SubtypeBlocked = "blocked"

// ErrMalformedPayload is returned when a webhook body is neither a JSON
// object nor a JSON array of objects.
var ErrMalformedPayload = errors.New("payload must be a JSON object or an array of JSON objects")

// ErrNotAnObject marks an array element that is not a JSON object.
var ErrNotAnObject = errors.New("event is not a JSON object")

// Event is one inbound SendGrid webhook record. Provider fields not modelled
// here survive in Raw and are persisted verbatim.
type Event struct {
	Type        string          `json:"event"`
	Subtype     string          `json:"type,omitempty"`
	Email       string          `json:"email,omitempty"`
	SMTPID      string          `json:"smtp-id,omitempty"`
	SGEventID   string          `json:"sg_event_id,omitempty"`
	SGMessageID string          `json:"sg_message_id,omitempty"`
	Timestamp   int64           `json:"timestamp"`
	Domain      string          `json:"domain,omitempty"`
	Raw         json.RawMessage `json:"-"`

	// DecodeErr is set by ParseEvents for an array element that could not be
	// read as an event. Such events are reported as failed, not stored.
	DecodeErr error `json:"-"`
}

// IsBlockedBounce reports whether the event is a bounce with subtype "blocked".
func (e Event) IsBlockedBounce() bool {
	return e.Type == EventBounce && e.Subtype == SubtypeBlocked
}

// UnmarshalJSON decodes the known fields and keeps the full record in Raw.
// Fields of an unexpected JSON type decode to their zero value instead of
// failing the record. A timestamp sent as a quoted or fractional number is
// accepted; an unreadable one decodes to zero.
func (e *Event) UnmarshalJSON(data []byte) error {
	if t := bytes.TrimSpace(data); len(t) == 0 || t[0] != '{' {
		return ErrNotAnObject
	}
	var wire struct {
		Type        json.RawMessage `json:"event"`
		Subtype     json.RawMessage `json:"type"`
		Email       json.RawMessage `json:"email"`
		SMTPID      json.RawMessage `json:"smtp-id"`
		SGEventID   json.RawMessage `json:"sg_event_id"`
		SGMessageID json.RawMessage `json:"sg_message_id"`
		Timestamp   json.RawMessage `json:"timestamp"`
		Domain      json.RawMessage `json:"domain"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = Event{
		Type:        looseString(wire.Type),
		Subtype:     looseString(wire.Subtype),
		Email:       looseString(wire.Email),
		SMTPID:      looseString(wire.SMTPID),
		SGEventID:   looseString(wire.SGEventID),
		SGMessageID: looseString(wire.SGMessageID),
		Timestamp:   looseEpoch(wire.Timestamp),
		Domain:      looseString(wire.Domain),
		Raw:         append(json.RawMessage(nil), data...),
	}
	return nil
}

// Payload returns the raw record with the derived domain merged in. Events
// built in code without a raw body are marshalled from their fields.
func (e Event) Payload() (json.RawMessage, error) {
	fields := map[string]any{}
	if len(e.Raw) > 0 {
		if err := json.Unmarshal(e.Raw, &fields); err != nil {
			return nil, err
		}
		if fields == nil {
			return nil, ErrNotAnObject
		}
	} else {
		fields["event"] = e.Type
		fields["timestamp"] = e.Timestamp
		if e.Subtype != "" {
			fields["type"] = e.Subtype
		}
		if e.Email != "" {
			fields["email"] = e.Email
		}
		if e.SMTPID != "" {
			fields["smtp-id"] = e.SMTPID
		}
		if e.SGEventID != "" {
			fields["sg_event_id"] = e.SGEventID
		}
		if e.SGMessageID != "" {
			fields["sg_message_id"] = e.SGMessageID
		}
	}
	if e.Domain != "" {
		fields["domain"] = e.Domain
	}
	return json.Marshal(fields)
}

// ParseEvents decodes a webhook body holding either a single event object or
// an array of them. Only a body that is not valid JSON, or is neither an
// object nor an array, is rejected. An array element that cannot be read as
// an event is returned with DecodeErr set so its siblings are still processed.
func ParseEvents(body []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrMalformedPayload
	}
	switch trimmed[0] {
	case '{':
		var ev Event
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		return []Event{ev}, nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		events := make([]Event, len(elems))
		for i, raw := range elems {
			if err := json.Unmarshal(raw, &events[i]); err != nil {
				events[i] = Event{Raw: raw, DecodeErr: err}
			}
		}
		return events, nil
	default:
		return nil, ErrMalformedPayload
	}
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func looseEpoch(raw json.RawMessage) int64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// StoredEvent is an event as read back from a per-type store.
type StoredEvent struct {
	ID         int64           `json:"id" db:"id"`
	Type       string          `json:"event" db:"event_type"`
	Subtype    string          `json:"type,omitempty" db:"event_subtype"`
	Domain     string          `json:"domain" db:"domain"`
	Email      string          `json:"email,omitempty" db:"email"`
	Timestamp  int64           `json:"timestamp" db:"event_timestamp"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	ReceivedAt time.Time       `json:"receivedAt" db:"received_at"`
}
