package mailbox

import (
	"time"

	"github.io/infrasutra/holomail/internal/store"
)

// EmailView is the transport form of an email: string id, ISO-8601
// timestamps, absent optionals omitted.
type EmailView struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Sender     string   `json:"sender"`
	Recipient  string   `json:"recipient"`
	Body       *string  `json:"body,omitempty"`
	Preview    *string  `json:"preview,omitempty"`
	Folder     string   `json:"folder"`
	Tags       []string `json:"tags"`
	IsRead     bool     `json:"is_read"`
	IsArchived bool     `json:"is_archived"`
	IsDeleted  bool     `json:"is_deleted"`
	ReceivedAt string   `json:"received_at,omitempty"`
}

type TagView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type FolderView struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Icon *string `json:"icon,omitempty"`
}

type EventView struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	StartsAt string  `json:"starts_at"`
	EndsAt   string  `json:"ends_at,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func toEmailView(e store.Email) EmailView {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return EmailView{
		ID:         e.ID,
		Subject:    e.Subject,
		Sender:     e.Sender,
		Recipient:  e.Recipient,
		Body:       e.Body,
		Preview:    e.Preview,
		Folder:     e.Folder,
		Tags:       tags,
		IsRead:     e.IsRead,
		IsArchived: e.IsArchived,
		IsDeleted:  e.IsDeleted,
		ReceivedAt: formatTime(e.ReceivedAt),
	}
}

func toTagView(t store.Tag) TagView {
	return TagView{ID: t.ID, Name: t.Name, Color: t.Color}
}

func toFolderView(f store.Folder) FolderView {
	return FolderView{ID: f.ID, Name: f.Name, Icon: f.Icon}
}

func toEventView(e store.Event) EventView {
	return EventView{
		ID:       e.ID,
		Title:    e.Title,
		StartsAt: formatTime(&e.StartsAt),
		EndsAt:   formatTime(e.EndsAt),
		Notes:    e.Notes,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
