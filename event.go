package crm

import "context"

type EventMeta struct {
	// Type is the name of the event.
	Type string `json:"type"`
	// CausationID should provide an ID that can be used to trace
	// back to the request that caused the event to be dispatched.
	CausationID string `json:"causationId,omitempty"`
	// CorrelationID should provide an ID that can be used to group together
	// all the events that are part of the same logical operation.
	CorrelationID string `json:"correlationId,omitempty"`
}

type Event interface {
	GetMeta() EventMeta
	// GroupKey orders events: events with the same key are delivered in order.
	GroupKey() string
}

const (
	EventCustomerCreated = "CustomerCreated"
	EventCustomerDeleted = "CustomerDeleted"
	EventNoteCreated     = "NoteCreated"
	EventNoteUpdated     = "NoteUpdated"
	EventNoteDeleted     = "NoteDeleted"
)

type CustomerCreated struct {
	Meta     EventMeta `json:"meta"`
	Customer Customer  `json:"customer"`
}

func (e CustomerCreated) GetMeta() EventMeta { return e.Meta }
func (e CustomerCreated) GroupKey() string   { return e.Customer.ID }

type CustomerDeleted struct {
	Meta         EventMeta `json:"meta"`
	CustomerID   string    `json:"customerId"`
	NotesDeleted int       `json:"notesDeleted"`
}

func (e CustomerDeleted) GetMeta() EventMeta { return e.Meta }
func (e CustomerDeleted) GroupKey() string   { return e.CustomerID }

type NoteCreated struct {
	Meta EventMeta `json:"meta"`
	Note Note      `json:"note"`
}

func (e NoteCreated) GetMeta() EventMeta { return e.Meta }
func (e NoteCreated) GroupKey() string   { return e.Note.CustomerID }

type NoteUpdated struct {
	Meta   EventMeta `json:"meta"`
	Note   Note      `json:"note"`
	Fields []string  `json:"fields"`
}

func (e NoteUpdated) GetMeta() EventMeta { return e.Meta }
func (e NoteUpdated) GroupKey() string   { return e.Note.CustomerID }

type NoteDeleted struct {
	Meta       EventMeta `json:"meta"`
	CustomerID string    `json:"customerId"`
	NoteID     string    `json:"noteId"`
}

func (e NoteDeleted) GetMeta() EventMeta { return e.Meta }
func (e NoteDeleted) GroupKey() string   { return e.CustomerID }

type causationKey struct{}
type correlationKey struct{}

// WithRequestIDs stores the ids of the request being served. Events emitted
// while serving it carry them in their EventMeta.
func WithRequestIDs(ctx context.Context, causationID, correlationID string) context.Context {
	ctx = context.WithValue(ctx, causationKey{}, causationID)
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

func NewEventMeta(ctx context.Context, eventType string) EventMeta {
	causation, _ := ctx.Value(causationKey{}).(string)
	correlation, _ := ctx.Value(correlationKey{}).(string)
	if correlation == "" {
		correlation = causation
	}
	return EventMeta{
		Type:          eventType,
		CausationID:   causation,
		CorrelationID: correlation,
	}
}
