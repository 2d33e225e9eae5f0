// Package notes is the note ledger. Notes live in their customer's
// partition under NOTE#<created>#<id> sort keys, so a customer's notes are
// read back in creation order and a note is looked up by id with a partition
// query filtered on id.
//
// Attachments never pass through this package: Create and Update hand out a
// pre-signed upload URL and AttachmentDownloadURL a pre-signed download URL.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"

	"github.com/acksell/crm"
	"github.com/acksell/crm/crmerr"
	"github.com/acksell/crm/dynamodb/ddbsdk"
	"github.com/acksell/crm/events"
	"github.com/acksell/crm/metrics"
	"github.com/acksell/crm/objectstore"
	"github.com/acksell/crm/validation"
)

type CreateInput struct {
	Title      string         `json:"title" validate:"required"`
	Content    string         `json:"content" validate:"required"`
	EntityType crm.EntityType `json:"entityType" validate:"required,oneof=Contact Lead Opportunity Account"`
	IsPrivate  *bool          `json:"isPrivate" validate:"required"`
	Filename   string         `json:"filename,omitempty" validate:"omitempty,basename"`
}

// UpdateInput is a partial update. Nil fields are left untouched.
type UpdateInput struct {
	Title      *string         `json:"title,omitempty" validate:"omitnil,min=1"`
	Content    *string         `json:"content,omitempty" validate:"omitnil,min=1"`
	EntityType *crm.EntityType `json:"entityType,omitempty" validate:"omitnil,oneof=Contact Lead Opportunity Account"`
	IsPrivate  *bool           `json:"isPrivate,omitempty"`
	Filename   *string         `json:"filename,omitempty" validate:"omitnil,basename"`
}

func (in UpdateInput) IsEmpty() bool {
	return in.Title == nil && in.Content == nil && in.EntityType == nil && in.IsPrivate == nil && in.Filename == nil
}

// Result is a stored note, plus the upload URL when the request named an
// attachment.
type Result struct {
	Note   crm.Note
	Upload *objectstore.URL
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

// WithVerifyObjects makes AttachmentDownloadURL check that the attachment
// was actually uploaded before signing a download URL for it.
func WithVerifyObjects(verify bool) Option {
	return func(s *Service) { s.verifyObjects = verify }
}

type Service struct {
	table         ddbsdk.Table
	objects       objectstore.Presigner
	logger        *slog.Logger
	clock         func() time.Time
	newID         func() string
	publisher     events.Publisher
	metrics       *metrics.Recorder
	verifyObjects bool
}

func New(table ddbsdk.Table, objects objectstore.Presigner, opts ...Option) *Service {
	s := &Service{
		table:     table,
		objects:   objects,
		logger:    slog.Default(),
		clock:     time.Now,
		newID:     uuid.NewString,
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "notes"))
	return s
}

// Create files a new note under an existing customer.
func (s *Service) Create(ctx context.Context, customerID string, in CreateInput) (res Result, err error) {
	defer s.observe(ctx, metrics.CreateNote, time.Now(), &err)

	if err := validation.Struct(in); err != nil {
		return Result{}, err
	}
	if err := s.customerExists(ctx, customerID); err != nil {
		return Result{}, err
	}

	now := crm.FormatTime(s.clock())
	n := crm.Note{
		ID:         s.newID(),
		CustomerID: customerID,
		Title:      in.Title,
		Content:    in.Content,
		EntityType: in.EntityType,
		IsPrivate:  *in.IsPrivate,
		Created:    now,
		Updated:    now,
		Type:       crm.TypeNote,
	}
	if in.Filename != "" {
		n.AttachmentKey = crm.AttachmentKey(customerID, n.ID, in.Filename)
		n.AttachmentFilename = in.Filename
		upload, err := s.objects.PresignPut(ctx, n.AttachmentKey)
		if err != nil {
			return Result{}, err
		}
		res.Upload = &upload
	}

	put, err := ddbsdk.NewPut(crm.NoteIndex, n)
	if err != nil {
		return Result{}, err
	}
	if err := s.table.PutItem(ctx, put.WithIfNotExists()); err != nil {
		return Result{}, fmt.Errorf("create note %s: %w", n.ID, err)
	}
	s.publish(ctx, crm.NoteCreated{Meta: crm.NewEventMeta(ctx, crm.EventNoteCreated), Note: n})
	res.Note = n
	return res, nil
}

// List returns the customer's notes, oldest first.
func (s *Service) List(ctx context.Context, customerID string) (list []crm.Note, err error) {
	defer s.observe(ctx, metrics.ListNotes, time.Now(), &err)

	items, err := s.table.Query(ctx, ddbsdk.NewQuery(crm.CustomerPK(customerID), ddbsdk.BeginsWith(crm.NotePrefix)))
	if err != nil {
		return nil, fmt.Errorf("list notes of customer %s: %w", customerID, err)
	}
	list = make([]crm.Note, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &list); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, customerID, noteID string) (n crm.Note, err error) {
	defer s.observe(ctx, metrics.GetNote, time.Now(), &err)
	return s.find(ctx, customerID, noteID)
}

// Update sets only the supplied fields. A filename replaces the attachment
// reference and returns a fresh upload URL.
func (s *Service) Update(ctx context.Context, customerID, noteID string, in UpdateInput) (res Result, err error) {
	defer s.observe(ctx, metrics.UpdateNote, time.Now(), &err)

	if err := validation.Struct(in); err != nil {
		return Result{}, err
	}
	if in.IsEmpty() {
		return Result{}, crmerr.ErrNothingToUpdate
	}
	n, err := s.find(ctx, customerID, noteID)
	if err != nil {
		return Result{}, err
	}

	upd := ddbsdk.NewUpdate(crm.NoteKey(customerID, n.Created, n.ID))
	if in.Title != nil {
		upd.Set("title", *in.Title)
	}
	if in.Content != nil {
		upd.Set("content", *in.Content)
	}
	if in.EntityType != nil {
		upd.Set("entityType", *in.EntityType)
	}
	if in.IsPrivate != nil {
		upd.Set("isPrivate", *in.IsPrivate)
	}
	if in.Filename != nil {
		key := crm.AttachmentKey(customerID, noteID, *in.Filename)
		upd.Set("attachmentKey", key).Set("attachmentFilename", *in.Filename)
		upload, err := s.objects.PresignPut(ctx, key)
		if err != nil {
			return Result{}, err
		}
		res.Upload = &upload
	}
	upd.Set(crm.AttrUpdated, crm.FormatTime(s.clock()))

	item, err := s.table.UpdateItem(ctx, upd)
	if errors.Is(err, ddbsdk.ErrConditionFailed) {
		// Deleted between the lookup and the update.
		return Result{}, crmerr.NotFound("note", noteID)
	}
	if err != nil {
		return Result{}, fmt.Errorf("update note %s: %w", noteID, err)
	}
	if err := attributevalue.UnmarshalMap(item, &res.Note); err != nil {
		return Result{}, fmt.Errorf("unmarshal note %s: %w", noteID, err)
	}
	fields := upd.Fields()
	s.publish(ctx, crm.NoteUpdated{
		Meta:   crm.NewEventMeta(ctx, crm.EventNoteUpdated),
		Note:   res.Note,
		Fields: fields[:len(fields)-1],
	})
	return res, nil
}

func (s *Service) Delete(ctx context.Context, customerID, noteID string) (err error) {
	defer s.observe(ctx, metrics.DeleteNote, time.Now(), &err)

	n, err := s.find(ctx, customerID, noteID)
	if err != nil {
		return err
	}
	if err := s.table.DeleteItem(ctx, crm.NoteKey(customerID, n.Created, n.ID)); err != nil {
		return fmt.Errorf("delete note %s: %w", noteID, err)
	}
	s.publish(ctx, crm.NoteDeleted{
		Meta:       crm.NewEventMeta(ctx, crm.EventNoteDeleted),
		CustomerID: customerID,
		NoteID:     noteID,
	})
	return nil
}

// AttachmentDownloadURL signs a download URL for the note's attachment.
func (s *Service) AttachmentDownloadURL(ctx context.Context, customerID, noteID string) (u objectstore.URL, err error) {
	defer s.observe(ctx, metrics.GetAttachmentURL, time.Now(), &err)

	n, err := s.find(ctx, customerID, noteID)
	if err != nil {
		return objectstore.URL{}, err
	}
	if !n.HasAttachment() {
		return objectstore.URL{}, crmerr.NotFound("attachment of note", noteID)
	}
	if s.verifyObjects {
		ok, err := s.objects.Exists(ctx, n.AttachmentKey)
		if err != nil {
			return objectstore.URL{}, err
		}
		if !ok {
			return objectstore.URL{}, crmerr.NotFound("attachment of note", noteID)
		}
	}
	return s.objects.PresignGet(ctx, n.AttachmentKey)
}

func (s *Service) customerExists(ctx context.Context, customerID string) error {
	item, err := s.table.GetItem(ctx, crm.CustomerKey(customerID))
	if err != nil {
		return fmt.Errorf("get customer %s: %w", customerID, err)
	}
	if item == nil {
		return crmerr.NotFound("customer", customerID)
	}
	return nil
}

// find locates a note by id. Note sort keys start with the creation time, so
// there is no direct key path from the id alone.
func (s *Service) find(ctx context.Context, customerID, noteID string) (crm.Note, error) {
	q := ddbsdk.NewQuery(crm.CustomerPK(customerID), ddbsdk.BeginsWith(crm.NotePrefix)).
		WithFilterEquals(crm.AttrNoteID, noteID)
	items, err := s.table.Query(ctx, q)
	if err != nil {
		return crm.Note{}, fmt.Errorf("find note %s: %w", noteID, err)
	}
	if len(items) == 0 {
		return crm.Note{}, crmerr.NotFound("note", noteID)
	}
	var n crm.Note
	if err := attributevalue.UnmarshalMap(items[0], &n); err != nil {
		return crm.Note{}, fmt.Errorf("unmarshal note %s: %w", noteID, err)
	}
	return n, nil
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
	if err == nil || crmerr.IsValidation(err) || crmerr.IsNotFound(err) {
		s.logger.DebugContext(ctx, op, slog.String("outcome", metrics.Outcome(err)))
		return
	}
	s.logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
}
