// ABOUTME: Unit tests for the webhook client using httptest servers
// ABOUTME: Covers submit success/failure, response shapes, and configuration errors

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgate/formgate/internal/lead"
)

func TestSubmit_PostsJSON(t *testing.T) {
	var got lead.Lead
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{SubmitURL: srv.URL})
	l := lead.Lead{Name: "Ada", Email: "ada@example.com", SubmittedAt: time.Now().UTC()}
	require.NoError(t, c.Submit(context.Background(), l))
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestSubmit_Non2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "flow disabled", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{SubmitURL: srv.URL})
	err := c.Submit(context.Background(), lead.Lead{Name: "Ada", Email: "ada@example.com"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestSubmit_NotConfigured(t *testing.T) {
	c := New(Config{})
	err := c.Submit(context.Background(), lead.Lead{Name: "Ada"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSubmit_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := New(Config{SubmitURL: srv.URL})
	err := c.Submit(context.Background(), lead.Lead{Name: "Ada"})
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr), "transport failure must not be a StatusError")
}

func TestFetchLeads_ResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "bare array",
			body: `[{"name":"Ada","email":"ada@example.com"},{"full_name":"Grace","email":"grace@example.com"}]`,
			want: 2,
		},
		{
			name: "data envelope",
			body: `{"data":[{"name":"Ada","email":"ada@example.com"}]}`,
			want: 1,
		},
		{
			name: "leads envelope",
			body: `{"leads":[{"name":"Ada","email":"ada@example.com"}]}`,
			want: 1,
		},
		{
			name: "single object",
			body: `{"name":"Ada","email":"ada@example.com"}`,
			want: 1,
		},
		{
			name: "empty array",
			body: `[]`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(Config{ReadURL: srv.URL})
			leads, err := c.FetchLeads(context.Background())
			require.NoError(t, err)
			assert.Len(t, leads, tt.want)
		})
	}
}

func TestFetchLeads_NormalizesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"Full Name":"Ada Lovelace","email_address":"ada@example.com","created_at":"2026-02-01T09:30:00Z"}]`))
	}))
	defer srv.Close()

	c := New(Config{ReadURL: srv.URL})
	leads, err := c.FetchLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Ada Lovelace", leads[0].Name)
	assert.Equal(t, "ada@example.com", leads[0].Email)
	assert.Equal(t, 2026, leads[0].SubmittedAt.Year())
}

func TestFetchLeads_GarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login page</html>`))
	}))
	defer srv.Close()

	c := New(Config{ReadURL: srv.URL})
	_, err := c.FetchLeads(context.Background())
	require.Error(t, err)
}

func TestFetchLeads_NotConfigured(t *testing.T) {
	c := New(Config{})
	_, err := c.FetchLeads(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
