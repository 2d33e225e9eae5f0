// Package customers is the customer directory: create, fetch, list and
// delete customers. Deleting a customer also deletes its notes.
package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/acksell/crm"
	"github.com/acksell/crm/crmerr"
	"github.com/acksell/crm/dynamodb/ddbsdk"
	"github.com/acksell/crm/events"
	"github.com/acksell/crm/metrics"
	"github.com/acksell/crm/validation"
)

const DefaultCascadeConcurrency = 8

type AddressInput struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

type CreateInput struct {
	FirstName string        `json:"firstName" validate:"required"`
	LastName  string        `json:"lastName" validate:"required"`
	JobTitle  string        `json:"jobTitle" validate:"required"`
	Company   string        `json:"company" validate:"required"`
	Email     string        `json:"email" validate:"required,email"`
	Phone     string        `json:"phone" validate:"required"`
	Address   *AddressInput `json:"address" validate:"required"`
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator replaces the uuid generator, e.g. for deterministic tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCascadeConcurrency bounds the number of notes deleted at once when a
// customer is deleted.
func WithCascadeConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

type Service struct {
	table       ddbsdk.Table
	logger      *slog.Logger
	clock       func() time.Time
	newID       func() string
	publisher   events.Publisher
	metrics     *metrics.Recorder
	concurrency int
}

func New(table ddbsdk.Table, opts ...Option) *Service {
	s := &Service{
		table:       table,
		logger:      slog.Default(),
		clock:       time.Now,
		newID:       uuid.NewString,
		publisher:   events.Nop{},
		concurrency: DefaultCascadeConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	s.logger = s.logger.With(slog.String("component", "customers"))
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput) (c crm.Customer, err error) {
	defer s.observe(ctx, metrics.CreateCustomer, time.Now(), &err)

	if err := validation.Struct(in); err != nil {
		return crm.Customer{}, err
	}
	now := crm.FormatTime(s.clock())
	c = crm.Customer{
		ID:        s.newID(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		JobTitle:  in.JobTitle,
		Company:   in.Company,
		Email:     in.Email,
		Phone:     in.Phone,
		Address: &crm.Address{
			Street:     in.Address.Street,
			City:       in.Address.City,
			State:      in.Address.State,
			PostalCode: in.Address.PostalCode,
			Country:    in.Address.Country,
		},
		Created: now,
		Updated: now,
		Type:    crm.TypeCustomer,
	}
	put, err := ddbsdk.NewPut(crm.CustomerIndex, c)
	if err != nil {
		return crm.Customer{}, err
	}
	if err := s.table.PutItem(ctx, put.WithIfNotExists()); err != nil {
		return crm.Customer{}, fmt.Errorf("create customer %s: %w", c.ID, err)
	}
	s.publish(ctx, crm.CustomerCreated{Meta: crm.NewEventMeta(ctx, crm.EventCustomerCreated), Customer: c})
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (c crm.Customer, err error) {
	defer s.observe(ctx, metrics.GetCustomer, time.Now(), &err)

	item, err := s.table.GetItem(ctx, crm.CustomerKey(id))
	if err != nil {
		return crm.Customer{}, fmt.Errorf("get customer %s: %w", id, err)
	}
	if item == nil {
		return crm.Customer{}, crmerr.NotFound("customer", id)
	}
	if err := attributevalue.UnmarshalMap(item, &c); err != nil {
		return crm.Customer{}, fmt.Errorf("unmarshal customer %s: %w", id, err)
	}
	return c, nil
}

// ListAll returns every customer, newest first.
func (s *Service) ListAll(ctx context.Context) (list []crm.Customer, err error) {
	defer s.observe(ctx, metrics.ListCustomers, time.Now(), &err)

	q := ddbsdk.NewQuery(crm.TypeCustomer, ddbsdk.SortKeyCondition{}).
		OnIndex(crm.IndexByType).
		WithDescending()
	items, err := s.table.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	list = make([]crm.Customer, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &list); err != nil {
		return nil, fmt.Errorf("unmarshal customers: %w", err)
	}
	return list, nil
}

// Delete removes the customer and every note filed under it, returning the
// number of notes removed. If any note cannot be deleted the customer is
// kept and a *crmerr.CascadeError names the notes left behind. Deleting an
// unknown customer succeeds.
func (s *Service) Delete(ctx context.Context, id string) (deleted int, err error) {
	defer s.observe(ctx, metrics.DeleteCustomer, time.Now(), &err)

	q := ddbsdk.NewQuery(crm.CustomerPK(id), ddbsdk.BeginsWith(crm.NotePrefix))
	items, err := s.table.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("list notes of customer %s: %w", id, err)
	}

	notes := make([]crm.Note, len(items))
	for i, item := range items {
		if err := attributevalue.UnmarshalMap(item, &notes[i]); err != nil {
			return 0, fmt.Errorf("unmarshal note of customer %s: %w", id, err)
		}
	}

	var (
		mu     sync.Mutex
		failed = map[string]error{}
		g      errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, n := range notes {
		g.Go(func() error {
			err := s.table.DeleteItem(ctx, crm.NoteKey(id, n.Created, n.ID))
			if err != nil {
				s.metrics.Count(metrics.CascadeNoteDelete, metrics.OutcomeError)
				s.logger.ErrorContext(ctx, "cascade note delete failed",
					slog.String("customerId", id),
					slog.String("noteId", n.ID),
					slog.Any("error", err))
				mu.Lock()
				failed[n.ID] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(failed) > 0 {
		return len(items) - len(failed), &crmerr.CascadeError{CustomerID: id, Failed: failed}
	}

	if err := s.table.DeleteItem(ctx, crm.CustomerKey(id)); err != nil {
		return len(items), fmt.Errorf("delete customer %s: %w", id, err)
	}
	s.publish(ctx, crm.CustomerDeleted{
		Meta:         crm.NewEventMeta(ctx, crm.EventCustomerDeleted),
		CustomerID:   id,
		NotesDeleted: len(items),
	})
	return len(items), nil
}

func (s *Service) publish(ctx context.Context, e crm.Event) {
	err := s.publisher.Publish(ctx, e)
	s.metrics.Count(metrics.PublishEvent, metrics.Outcome(err))
	if err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", e.GetMeta().Type),
			slog.Any("error", err))
	}
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, errp *error) {
	err := *errp
	s.metrics.Observe(op, start, err)
	var cascade *crmerr.CascadeError
	switch {
	case err == nil, crmerr.IsValidation(err), crmerr.IsNotFound(err):
		s.logger.DebugContext(ctx, op, slog.String("outcome", metrics.Outcome(err)))
	case errors.As(err, &cascade):
		s.logger.ErrorContext(ctx, op+" failed", slog.Any("failedNotes", cascade.FailedIDs()), slog.Any("error", err))
	default:
		s.logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
	}
}
