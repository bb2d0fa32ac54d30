package pagination

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  Params
	}{
		{name: "defaults", query: "", want: Params{Page: 1, Limit: 20}},
		{name: "explicit", query: "page=3&limit=15", want: Params{Page: 3, Limit: 15}},
		{name: "capped", query: "limit=500", want: Params{Page: 1, Limit: MaxLimit}},
		{name: "non-positive falls back", query: "page=0&limit=-4", want: Params{Page: 1, Limit: 20}},
		{name: "last allowed page", query: "page=" + strconv.Itoa(MaxPage), want: Params{Page: MaxPage, Limit: 20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			got, err := Parse(q)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	queries := []string{
		"page=two",
		"limit=ten",
		"page=1&limit=1.5",
		"page=" + strconv.Itoa(MaxPage+1),
		"page=9223372036854775807",
		"page=99999999999999999999",
	}
	for _, query := range queries {
		q, err := url.ParseQuery(query)
		require.NoError(t, err)
		_, err = Parse(q)
		assert.ErrorIs(t, err, ErrInvalidParam, query)
	}
}
