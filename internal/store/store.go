package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrUnsupportedBackend = errors.New("unsupported database backend")
)

type Store struct {
	db      *sql.DB
	dialect dialect
	// lastStamp keeps created_at strictly increasing so insertion order survives
	// inserts landing in the same microsecond.
	lastStamp atomic.Int64
}

// Open connects to the database named by dsn. An empty dsn opens an
// in-memory SQLite database; postgres:// and postgresql:// URLs use
// PostgreSQL; sqlite:// URLs and plain paths use SQLite.
func Open(ctx context.Context, dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	scheme := ""
	if parsed, err := url.Parse(trimmed); err == nil {
		scheme = strings.ToLower(parsed.Scheme)
	}
	switch scheme {
	case "postgres", "postgresql":
		return openPostgres(ctx, trimmed)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, strings.TrimPrefix(trimmed[len(scheme)+1:], "//"))
	case "", "file":
		return openSQLite(ctx, trimmed)
	default:
		// Windows drive letters parse as a one-letter scheme.
		if len(scheme) == 1 {
			return openSQLite(ctx, trimmed)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, scheme)
	}
}

func openSQLite(ctx context.Context, path string) (*Store, error) {
	inMemory := false
	if path == "" {
		path = ":memory:"
		inMemory = true
	}
	if strings.Contains(path, "mode=memory") || path == ":memory:" || path == "file::memory:" {
		inMemory = true
	}
	if err := registerSQLiteFunctions(); err != nil {
		return nil, fmt.Errorf("register sqlite functions: %w", err)
	}
	d := sqliteDialect{}
	db, err := sql.Open(d.driver(), path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db, dialect: d}, nil
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	d := postgresDialect{}
	db, err := sql.Open(d.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Backend names the SQL dialect in use.
func (s *Store) Backend() string {
	return s.dialect.name()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.dialect.name(), err)
	}
	return nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, statement := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Collections lists the tables visible to the connection.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.listTables())
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) stamp() int64 {
	for {
		now := time.Now().UnixMicro()
		last := s.lastStamp.Load()
		if now <= last {
			now = last + 1
		}
		if s.lastStamp.CompareAndSwap(last, now) {
			return now
		}
	}
}

const emailColumns = `id, subject, sender, recipient, body, preview, folder, tags,
        is_read, is_archived, is_deleted, received_at`

// InsertEmail stores a new email and returns its assigned id.
func (s *Store) InsertEmail(ctx context.Context, email Email) (string, error) {
	id := uuid.NewString()
	tags := email.Tags
	if tags == nil {
		tags = []string{}
	}
	encodedTags, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO email
        (id, subject, sender, recipient, body, preview, folder, tags, is_read, is_archived, is_deleted, received_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		id,
		email.Subject,
		email.Sender,
		email.Recipient,
		nullString(email.Body),
		nullString(email.Preview),
		email.Folder,
		string(encodedTags),
		email.IsRead,
		email.IsArchived,
		email.IsDeleted,
		nullTime(email.ReceivedAt),
		s.stamp(),
	)
	if err != nil {
		return "", fmt.Errorf("insert email: %w", err)
	}
	return id, nil
}

func (s *Store) GetEmail(ctx context.Context, id string) (Email, error) {
	row := s.queryRow(ctx, `SELECT `+emailColumns+` FROM email WHERE id = ?;`, id)
	email, err := scanEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Email{}, ErrNotFound
		}
		return Email{}, fmt.Errorf("get email: %w", err)
	}
	return email, nil
}

func (s *Store) ListEmails(ctx context.Context, q EmailQuery) ([]Email, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	where := []string{"is_deleted = ?"}
	args := []any{false}
	if q.Folder != "" {
		where = append(where, "folder = ?")
		args = append(args, q.Folder)
	}
	if q.Tag != "" {
		where = append(where, s.dialect.tagsContain())
		args = append(args, q.Tag)
	}
	if q.IsRead != nil {
		where = append(where, "is_read = ?")
		args = append(args, *q.IsRead)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		like := func(col string) string { return s.dialect.lower(col) + ` LIKE ? ESCAPE '\'` }
		where = append(where, "("+like("subject")+" OR "+like("sender")+" OR "+like("COALESCE(preview, '')")+")")
		term := "%" + escapeLike(strings.ToLower(search)) + "%"
		args = append(args, term, term, term)
	}

	listQuery := `SELECT ` + emailColumns + ` FROM email WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY received_at DESC NULLS LAST, created_at DESC, id DESC LIMIT ? OFFSET ?;`
	args = append(args, q.Limit, q.Offset)

	rows, err := s.query(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	emails := []Email{}
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return emails, nil
}

// UpdateEmails applies update to the emails with the given ids and reports
// how many were modified. An email already holding the target values is
// matched but not modified, so it is not counted.
func (s *Store) UpdateEmails(ctx context.Context, ids []string, update EmailUpdate) (int64, error) {
	if len(ids) == 0 || update.empty() {
		return 0, nil
	}

	var sets []string
	var setArgs []any
	var changes []string
	var changeArgs []any
	assign := func(column string, value any) {
		sets = append(sets, column+" = ?")
		setArgs = append(setArgs, value)
		changes = append(changes, column+" <> ?")
		changeArgs = append(changeArgs, value)
	}
	if update.Folder != nil {
		assign("folder", *update.Folder)
	}
	if update.IsRead != nil {
		assign("is_read", *update.IsRead)
	}
	if update.IsArchived != nil {
		assign("is_archived", *update.IsArchived)
	}
	if update.IsDeleted != nil {
		assign("is_deleted", *update.IsDeleted)
	}
	switch {
	case update.AddTag != "":
		sets = append(sets, "tags = "+s.dialect.tagsAppend())
		setArgs = append(setArgs, update.AddTag)
		changes = append(changes, "NOT "+s.dialect.tagsContain())
		changeArgs = append(changeArgs, update.AddTag)
	case update.RemoveTag != "":
		sets = append(sets, "tags = "+s.dialect.tagsRemove())
		setArgs = append(setArgs, update.RemoveTag)
		changes = append(changes, s.dialect.tagsContain())
		changeArgs = append(changeArgs, update.RemoveTag)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`UPDATE email SET %s WHERE id IN (%s) AND (%s);`,
		strings.Join(sets, ", "), placeholders, strings.Join(changes, " OR "))

	args := make([]any, 0, len(setArgs)+len(ids)+len(changeArgs))
	args = append(args, setArgs...)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, changeArgs...)

	result, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update emails: %w", err)
	}
	modified, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update emails: %w", err)
	}
	return modified, nil
}

func (s *Store) InsertTag(ctx context.Context, tag Tag) (string, error) {
	id := uuid.NewString()
	_, err := s.exec(ctx, `INSERT INTO tag (id, name, color, created_at) VALUES (?, ?, ?, ?);`,
		id, tag.Name, tag.Color, s.stamp())
	if err != nil {
		return "", fmt.Errorf("insert tag: %w", err)
	}
	return id, nil
}

func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.query(ctx, `SELECT id, name, color FROM tag ORDER BY created_at, id;`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("list tags: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (s *Store) InsertFolder(ctx context.Context, folder Folder) (string, error) {
	id := uuid.NewString()
	_, err := s.exec(ctx, `INSERT INTO folder (id, name, icon, created_at) VALUES (?, ?, ?, ?);`,
		id, folder.Name, nullString(folder.Icon), s.stamp())
	if err != nil {
		return "", fmt.Errorf("insert folder: %w", err)
	}
	return id, nil
}

func (s *Store) ListFolders(ctx context.Context) ([]Folder, error) {
	rows, err := s.query(ctx, `SELECT id, name, icon FROM folder ORDER BY created_at, id;`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []Folder{}
	for rows.Next() {
		var folder Folder
		var icon sql.NullString
		if err := rows.Scan(&folder.ID, &folder.Name, &icon); err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}
		folder.Icon = stringPtr(icon)
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

func (s *Store) InsertEvent(ctx context.Context, event Event) (string, error) {
	id := uuid.NewString()
	_, err := s.exec(ctx, `INSERT INTO event (id, title, starts_at, ends_at, notes, created_at)
        VALUES (?, ?, ?, ?, ?, ?);`,
		id, event.Title, event.StartsAt.UnixMicro(), nullTime(event.EndsAt), nullString(event.Notes), s.stamp())
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// ListEvents returns the latest-starting events first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query(ctx, `SELECT id, title, starts_at, ends_at, notes FROM event
        ORDER BY starts_at DESC, created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		var startsAt int64
		var endsAt sql.NullInt64
		var notes sql.NullString
		if err := rows.Scan(&event.ID, &event.Title, &startsAt, &endsAt, &notes); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		event.StartsAt = time.UnixMicro(startsAt).UTC()
		event.EndsAt = timePtr(endsAt)
		event.Notes = stringPtr(notes)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(row scanner) (Email, error) {
	var email Email
	var body, preview sql.NullString
	var tags []byte
	var receivedAt sql.NullInt64
	if err := row.Scan(
		&email.ID,
		&email.Subject,
		&email.Sender,
		&email.Recipient,
		&body,
		&preview,
		&email.Folder,
		&tags,
		&email.IsRead,
		&email.IsArchived,
		&email.IsDeleted,
		&receivedAt,
	); err != nil {
		return Email{}, err
	}
	email.Body = stringPtr(body)
	email.Preview = stringPtr(preview)
	email.ReceivedAt = timePtr(receivedAt)
	email.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &email.Tags); err != nil {
			return Email{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return email, nil
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: value.UnixMicro(), Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func timePtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := time.UnixMicro(value.Int64).UTC()
	return &t
}
