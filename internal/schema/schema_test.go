package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Load()
	require.NoError(t, err)
	return reg
}

func TestValidateAcceptsValidPayloads(t *testing.T) {
	reg := loadRegistry(t)

	cases := map[Name]string{
		EmailCreate:  `{"subject":"hi","sender":"a@x","recipient":"b@x","tags":["work"],"is_read":false,"body":null}`,
		BulkAction:   `{"ids":["1","2"],"action":"archive"}`,
		TagCreate:    `{"name":"work"}`,
		FolderCreate: `{"name":"receipts","icon":null}`,
		EventCreate:  `{"title":"standup","starts_at":"2024-05-01T09:00:00Z","ends_at":"2024-05-01T09:15:00+02:00"}`,
	}
	for name, body := range cases {
		assert.NoError(t, reg.Validate(name, []byte(body)), name)
	}
}

func TestValidateReportsViolations(t *testing.T) {
	reg := loadRegistry(t)

	err := reg.Validate(EmailCreate, []byte(`{"subject":"hi","tags":"work"}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, EmailCreate, verr.Schema)
	require.NotEmpty(t, verr.Details)

	locations := map[string]bool{}
	for _, d := range verr.Details {
		locations[d.Location] = true
		assert.NotEmpty(t, d.Message)
	}
	assert.True(t, locations["/"], "missing required properties are reported at the root")
	assert.True(t, locations["/tags"])
}

func TestValidateDateTimeFormat(t *testing.T) {
	reg := loadRegistry(t)

	err := reg.Validate(EventCreate, []byte(`{"title":"standup","starts_at":"tomorrow at nine"}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Details, 1)
	assert.Equal(t, "/starts_at", verr.Details[0].Location)
}

func TestValidateMalformed(t *testing.T) {
	reg := loadRegistry(t)
	err := reg.Validate(TagCreate, []byte(`{"name":`))
	assert.ErrorIs(t, err, ErrMalformed)

	assert.Error(t, reg.Validate(Name("nope"), []byte(`{}`)))
}

func TestCatalogue(t *testing.T) {
	reg := loadRegistry(t)
	entries := reg.Catalogue()
	require.Len(t, entries, len(catalogueOrder))

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(e.JSONSchema, &doc), e.Name)
		assert.Equal(t, "object", doc["type"])
	}
	assert.Equal(t, []string{"email", "tag", "folder", "event"}, names[:4])
}
