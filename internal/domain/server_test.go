package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: []string{}},
		{raw: "  ", want: []string{}},
		{raw: "db, cache ,db,,search", want: []string{"db", "cache", "search"}},
		{raw: "b,a", want: []string{"b", "a"}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ParseTags(tt.raw), tt.raw)
	}
	require.Equal(t, "db,cache", JoinTags([]string{" db", "cache", "db", ""}))
}

func TestServerCreateRequest_Validate(t *testing.T) {
	valid := ServerCreateRequest{Name: "weather", URL: "https://weather.example/mcp", AuthType: AuthBearer}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*ServerCreateRequest)
	}{
		{name: "missing name", mutate: func(r *ServerCreateRequest) { r.Name = " " }},
		{name: "long name", mutate: func(r *ServerCreateRequest) { r.Name = strings.Repeat("x", 101) }},
		{name: "relative url", mutate: func(r *ServerCreateRequest) { r.URL = "/mcp" }},
		{name: "unknown auth", mutate: func(r *ServerCreateRequest) { r.AuthType = "oauth" }},
		{name: "long tags", mutate: func(r *ServerCreateRequest) { r.Tags = []string{strings.Repeat("t", 256)} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			require.True(t, IsValidation(err))
		})
	}
}

func TestParseAuthType(t *testing.T) {
	got, ok := ParseAuthType("")
	require.True(t, ok)
	require.Equal(t, AuthNone, got)

	got, ok = ParseAuthType("API-KEY")
	require.True(t, ok)
	require.Equal(t, AuthAPIKey, got)

	_, ok = ParseAuthType("kerberos")
	require.False(t, ok)
}

func TestServerClone_DoesNotShareTags(t *testing.T) {
	orig := Server{ID: 1, Tags: []string{"a"}}
	clone := orig.Clone()
	clone.Tags[0] = "b"
	require.Equal(t, "a", orig.Tags[0])
}
