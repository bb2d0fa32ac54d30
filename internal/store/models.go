package store

import "time"

type Email struct {
	ID         string
	Subject    string
	Sender     string
	Recipient  string
	Body       *string
	Preview    *string
	Folder     string
	Tags       []string
	IsRead     bool
	IsArchived bool
	IsDeleted  bool
	ReceivedAt *time.Time
}

type Tag struct {
	ID    string
	Name  string
	Color string
}

type Folder struct {
	ID   string
	Name string
	Icon *string
}

type Event struct {
	ID       string
	Title    string
	StartsAt time.Time
	EndsAt   *time.Time
	Notes    *string
}

// EmailQuery filters a listing. Soft-deleted emails are always excluded.
type EmailQuery struct {
	Folder string
	Tag    string
	IsRead *bool
	Search string
	Offset int
	Limit  int
}

// EmailUpdate is applied to every matched email in one statement. Nil
// fields are left alone; AddTag and RemoveTag are skipped when empty.
type EmailUpdate struct {
	Folder     *string
	IsRead     *bool
	IsArchived *bool
	IsDeleted  *bool
	AddTag     string
	RemoveTag  string
}

func (u EmailUpdate) empty() bool {
	return u.Folder == nil && u.IsRead == nil && u.IsArchived == nil && u.IsDeleted == nil &&
		u.AddTag == "" && u.RemoveTag == ""
}
