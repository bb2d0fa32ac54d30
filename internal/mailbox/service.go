// Package mailbox implements the mail, tag, folder and calendar operations.
// Mutations are written to the store first and then announced to realtime
// clients; the announcement never changes the operation's result.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.io/infrasutra/holomail/internal/realtime"
	"github.io/infrasutra/holomail/internal/store"
)

// Store is the document store the service writes through.
type Store interface {
	InsertEmail(ctx context.Context, email store.Email) (string, error)
	GetEmail(ctx context.Context, id string) (store.Email, error)
	ListEmails(ctx context.Context, q store.EmailQuery) ([]store.Email, error)
	UpdateEmails(ctx context.Context, ids []string, update store.EmailUpdate) (int64, error)
	InsertTag(ctx context.Context, tag store.Tag) (string, error)
	ListTags(ctx context.Context) ([]store.Tag, error)
	InsertFolder(ctx context.Context, folder store.Folder) (string, error)
	ListFolders(ctx context.Context) ([]store.Folder, error)
	InsertEvent(ctx context.Context, event store.Event) (string, error)
	ListEvents(ctx context.Context, limit int) ([]store.Event, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, event realtime.Event) realtime.Report
}

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

type EmailInput struct {
	Subject    string     `json:"subject"`
	Sender     string     `json:"sender"`
	Recipient  string     `json:"recipient"`
	Body       *string    `json:"body"`
	Preview    *string    `json:"preview"`
	Folder     string     `json:"folder"`
	Tags       []string   `json:"tags"`
	IsRead     bool       `json:"is_read"`
	ReceivedAt *time.Time `json:"received_at"`
}

type CreatedEmail struct {
	ID    string    `json:"id"`
	Email EmailView `json:"email"`
}

type BulkRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
	Folder *string  `json:"folder"`
	Tag    *string  `json:"tag"`
}

type BulkResult struct {
	Updated int64  `json:"updated"`
	Message string `json:"message,omitempty"`
}

type EmailFilter struct {
	Query  string
	Folder string
	Tag    string
	IsRead *bool
	Page   int
	Limit  int
}

type EmailPage struct {
	Items []EmailView `json:"items"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

type TagInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type FolderInput struct {
	Name string  `json:"name"`
	Icon *string `json:"icon"`
}

type EventInput struct {
	Title    string     `json:"title"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Notes    *string    `json:"notes"`
}

type Service struct {
	store  Store
	hub    Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

func NewService(st Store, hub Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, hub: hub, logger: logger, now: time.Now}
}

func (s *Service) CreateEmail(ctx context.Context, in EmailInput) (CreatedEmail, error) {
	subject := strings.TrimSpace(in.Subject)
	sender := strings.TrimSpace(in.Sender)
	recipient := strings.TrimSpace(in.Recipient)
	switch {
	case subject == "":
		return CreatedEmail{}, &ValidationError{Field: "subject", Message: "subject is required"}
	case sender == "":
		return CreatedEmail{}, &ValidationError{Field: "sender", Message: "sender is required"}
	case recipient == "":
		return CreatedEmail{}, &ValidationError{Field: "recipient", Message: "recipient is required"}
	}

	email := store.Email{
		Subject:   in.Subject,
		Sender:    in.Sender,
		Recipient: in.Recipient,
		Body:      in.Body,
		Preview:   in.Preview,
		Folder:    in.Folder,
		Tags:      uniqueTags(in.Tags),
		IsRead:    in.IsRead,
	}
	if email.Folder == "" {
		email.Folder = defaultFolder
	}
	if (email.Preview == nil || *email.Preview == "") && email.Body != nil && *email.Body != "" {
		preview := truncateRunes(*email.Body, previewLength)
		email.Preview = &preview
	}
	receivedAt := s.now().UTC()
	if in.ReceivedAt != nil && !in.ReceivedAt.IsZero() {
		receivedAt = in.ReceivedAt.UTC()
	}
	email.ReceivedAt = &receivedAt

	id, err := s.store.InsertEmail(ctx, email)
	if err != nil {
		return CreatedEmail{}, err
	}
	stored, err := s.store.GetEmail(ctx, id)
	if err != nil {
		return CreatedEmail{}, err
	}
	view := toEmailView(stored)

	report := s.hub.Broadcast(context.WithoutCancel(ctx), realtime.NewEmailCreated(view))
	s.logger.Debug("email created", "id", id, "delivered", report.Delivered, "evicted", report.Evicted)
	return CreatedEmail{ID: id, Email: view}, nil
}

func (s *Service) BulkUpdate(ctx context.Context, req BulkRequest) (BulkResult, error) {
	if len(req.IDs) == 0 {
		return BulkResult{}, &ValidationError{Field: "ids", Message: "at least one email id is required"}
	}

	action := ParseBulkAction(req.Action)
	update, message, ok := action.plan(deref(req.Folder), deref(req.Tag))
	if !ok {
		return BulkResult{Updated: 0, Message: message}, nil
	}

	modified, err := s.store.UpdateEmails(ctx, req.IDs, update)
	if err != nil {
		return BulkResult{}, err
	}

	report := s.hub.Broadcast(context.WithoutCancel(ctx), realtime.NewEmailsUpdated(action.String(), modified))
	s.logger.Debug("emails updated", "action", action.String(), "count", modified, "delivered", report.Delivered, "evicted", report.Evicted)
	return BulkResult{Updated: modified}, nil
}

func (s *Service) ListEmails(ctx context.Context, f EmailFilter) (EmailPage, error) {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if page-1 > math.MaxInt/limit {
		return EmailPage{}, &ValidationError{Field: "page", Message: "page is out of range"}
	}
	emails, err := s.store.ListEmails(ctx, store.EmailQuery{
		Folder: f.Folder,
		Tag:    f.Tag,
		IsRead: f.IsRead,
		Search: f.Query,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return EmailPage{}, err
	}
	items := make([]EmailView, 0, len(emails))
	for _, e := range emails {
		items = append(items, toEmailView(e))
	}
	return EmailPage{Items: items, Page: page, Limit: limit}, nil
}

func (s *Service) CreateTag(ctx context.Context, in TagInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", &ValidationError{Field: "name", Message: "name is required"}
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = defaultTagColor
	}
	return s.store.InsertTag(ctx, store.Tag{Name: in.Name, Color: color})
}

func (s *Service) ListTags(ctx context.Context) ([]TagView, error) {
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TagView, 0, len(tags))
	for _, t := range tags {
		out = append(out, toTagView(t))
	}
	return out, nil
}

func (s *Service) CreateFolder(ctx context.Context, in FolderInput) (string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", &ValidationError{Field: "name", Message: "name is required"}
	}
	return s.store.InsertFolder(ctx, store.Folder{Name: in.Name, Icon: in.Icon})
}

func (s *Service) ListFolders(ctx context.Context) ([]FolderView, error) {
	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FolderView, 0, len(folders))
	for _, f := range folders {
		out = append(out, toFolderView(f))
	}
	return out, nil
}

func (s *Service) CreateEvent(ctx context.Context, in EventInput) (string, error) {
	if strings.TrimSpace(in.Title) == "" {
		return "", &ValidationError{Field: "title", Message: "title is required"}
	}
	if in.StartsAt == nil || in.StartsAt.IsZero() {
		return "", &ValidationError{Field: "starts_at", Message: "starts_at is required"}
	}
	event := store.Event{
		Title:    in.Title,
		StartsAt: in.StartsAt.UTC(),
		Notes:    in.Notes,
	}
	if in.EndsAt != nil {
		endsAt := in.EndsAt.UTC()
		event.EndsAt = &endsAt
	}
	return s.store.InsertEvent(ctx, event)
}

func (s *Service) ListEvents(ctx context.Context, limit int) ([]EventView, error) {
	if limit < 1 {
		limit = defaultEventsLimit
	}
	events, err := s.store.ListEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, toEventView(e))
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// uniqueTags drops blanks and repeats, keeping first-seen order.
func uniqueTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
