package store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postgresIntegrationStore(t *testing.T) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("HOLOMAIL_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("HOLOMAIL_POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DROP TABLE IF EXISTS email, tag, folder, event;`)
		_ = s.Close()
	})
	_, err = s.db.ExecContext(ctx, `DROP TABLE IF EXISTS email, tag, folder, event;`)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestPostgresIntegrationEmailLifecycle(t *testing.T) {
	s := postgresIntegrationStore(t)
	ctx := context.Background()
	assert.Equal(t, "postgres", s.Backend())

	a := insertEmail(t, s, Email{Subject: "Invoice", Sender: "billing@acme.io", Recipient: "me", Tags: []string{"urgent"}, ReceivedAt: timeAt(3)})
	b := insertEmail(t, s, Email{Subject: "hello", Sender: "bob@example.com", Recipient: "me", ReceivedAt: timeAt(9)})
	undated := insertEmail(t, s, Email{Subject: "undated", Sender: "x", Recipient: "me"})

	modified, err := s.UpdateEmails(ctx, []string{a, b}, EmailUpdate{AddTag: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	tagged, err := s.ListEmails(ctx, EmailQuery{Tag: "urgent", Limit: 10})
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, b, tagged[0].ID)

	all, err := s.ListEmails(ctx, EmailQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, undated, all[2].ID)

	search, err := s.ListEmails(ctx, EmailQuery{Search: "INVOICE", Limit: 10})
	require.NoError(t, err)
	require.Len(t, search, 1)

	modified, err = s.UpdateEmails(ctx, []string{a, b}, EmailUpdate{RemoveTag: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)

	modified, err = s.UpdateEmails(ctx, []string{a}, EmailUpdate{IsDeleted: boolPtr(true), Folder: strPtr("trash")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	remaining, err := s.ListEmails(ctx, EmailQuery{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Subset(t, names, []string{"email", "event", "folder", "tag"})
}
