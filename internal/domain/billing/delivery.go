package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedDelivery is returned when a delivery body is not JSON or
// cannot be mapped onto the event payload.
var ErrMalformedDelivery = errors.New("malformed delivery")

// PartEntry is a part consumed by a work order
type PartEntry struct {
	PartID          string          `json:"part_id,omitempty"`
	PartName        string          `json:"part_name"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPriceCents  int64           `json:"unit_price_cents"`
	TotalPriceCents int64           `json:"total_price_cents"`
}

// LaborEntry is labor performed on a work order. TotalCents is already
// computed by the work-order service.
type LaborEntry struct {
	Description     string          `json:"description"`
	Hours           decimal.Decimal `json:"hours"`
	HourlyRateCents int64           `json:"hourly_rate_cents"`
	TotalCents      int64           `json:"total_cents"`
}

// WorkOrderCompleted is the payload of the work_order.completed topic
type WorkOrderCompleted struct {
	WorkOrderID   string       `json:"work_order_id"`
	CustomerID    string       `json:"customer_id"`
	VehicleID     string       `json:"vehicle_id,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	Currency      string       `json:"currency,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	Parts         []PartEntry  `json:"line_items"`
	Labor         []LaborEntry `json:"labor_entries"`
}

// Valid reports whether the payload names both a work order and a customer
func (e WorkOrderCompleted) Valid() bool {
	return e.WorkOrderID != "" && e.CustomerID != ""
}

// LineItems converts parts and labor into invoice lines. Each labor entry
// becomes a single line of quantity 1 priced at its total.
func (e WorkOrderCompleted) LineItems() []LineItem {
	items := make([]LineItem, 0, len(e.Parts)+len(e.Labor))
	for _, p := range e.Parts {
		items = append(items, LineItem{
			Type:           LineItemPart,
			Description:    p.PartName,
			Quantity:       p.Quantity,
			UnitPriceCents: p.UnitPriceCents,
			TotalCents:     p.TotalPriceCents,
		})
	}
	for _, l := range e.Labor {
		items = append(items, LineItem{
			Type:           LineItemLabor,
			Description:    l.Description,
			Quantity:       decimal.NewFromInt(1),
			UnitPriceCents: l.TotalCents,
			TotalCents:     l.TotalCents,
		})
	}
	return items
}

// DeliveryKind tells how a delivery was shaped on the wire
type DeliveryKind int

const (
	// DeliveryEnveloped is a CloudEvent with the payload under "data"
	DeliveryEnveloped DeliveryKind = iota + 1
	// DeliveryBare is the payload itself
	DeliveryBare
)

func (k DeliveryKind) String() string {
	switch k {
	case DeliveryEnveloped:
		return "enveloped"
	case DeliveryBare:
		return "bare"
	}
	return "unknown"
}

// Envelope carries the CloudEvent attributes of an enveloped delivery
type Envelope struct {
	ID              string `json:"id"`
	Source          string `json:"source"`
	Type            string `json:"type"`
	SpecVersion     string `json:"specversion"`
	DataContentType string `json:"datacontenttype"`
	Topic           string `json:"topic"`
	PubSubName      string `json:"pubsubname"`
	TraceParent     string `json:"traceparent"`
}

// Delivery is one decoded work_order.completed delivery. Envelope is set
// only when Kind is DeliveryEnveloped. Problem is set when the payload is
// JSON but does not fit WorkOrderCompleted; Event then carries only the
// identifiers that could be read.
type Delivery struct {
	Kind     DeliveryKind
	Envelope *Envelope
	Event    WorkOrderCompleted
	Problem  error
}

// ID returns the CloudEvent id, or "" for bare deliveries
func (d Delivery) ID() string {
	if d.Kind == DeliveryEnveloped && d.Envelope != nil {
		return d.Envelope.ID
	}
	return ""
}

type envelopeWire struct {
	Envelope
	Data json.RawMessage `json:"data"`
}

// DecodeDelivery decodes a delivery body. Only a body that is not JSON at
// all is an error. The enveloped shape is tried first, where "data" holds
// the payload either as an object or as a JSON encoded string; otherwise
// the whole body is the payload.
func DecodeDelivery(body []byte) (Delivery, error) {
	if !json.Valid(body) {
		return Delivery{}, fmt.Errorf("%w: body is not valid JSON", ErrMalformedDelivery)
	}

	d := Delivery{Kind: DeliveryBare}
	payload := body
	if env, data, ok := splitEnvelope(body); ok {
		d.Kind, d.Envelope, payload = DeliveryEnveloped, env, data
	}
	d.Event, d.Problem = decodePayload(payload)
	return d, nil
}

func splitEnvelope(body []byte) (*Envelope, []byte, bool) {
	var wire envelopeWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, nil, false
	}
	data := bytes.TrimSpace(wire.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil, false
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, nil, false
		}
		data = []byte(inner)
	}
	return &wire.Envelope, data, true
}

// decodePayload falls back to reading the string identifiers one by one
// when the payload as a whole does not decode.
func decodePayload(data []byte) (WorkOrderCompleted, error) {
	var event WorkOrderCompleted
	err := json.Unmarshal(data, &event)
	if err == nil {
		return event, nil
	}

	var fields map[string]json.RawMessage
	_ = json.Unmarshal(data, &fields)
	return WorkOrderCompleted{
		WorkOrderID:   stringField(fields, "work_order_id"),
		CustomerID:    stringField(fields, "customer_id"),
		CorrelationID: stringField(fields, "correlation_id"),
	}, fmt.Errorf("%w: %v", ErrMalformedDelivery, err)
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var v string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}
