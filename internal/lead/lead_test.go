// ABOUTME: Unit tests for lead validation and webhook row normalization
// ABOUTME: Covers required fields, email shape, field aliases, and timestamps

package lead

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		lead    Lead
		wantErr error
	}{
		{
			name: "valid lead",
			lead: Lead{Name: "Ada Lovelace", Email: "ada@example.com"},
		},
		{
			name:    "missing name",
			lead:    Lead{Email: "ada@example.com"},
			wantErr: ErrNameRequired,
		},
		{
			name:    "whitespace-only name",
			lead:    Lead{Name: "   ", Email: "ada@example.com"},
			wantErr: ErrNameRequired,
		},
		{
			name:    "missing email",
			lead:    Lead{Name: "Ada"},
			wantErr: ErrEmailRequired,
		},
		{
			name:    "bad email",
			lead:    Lead{Name: "Ada", Email: "not-an-email"},
			wantErr: ErrEmailInvalid,
		},
		{
			name:    "email without domain dot",
			lead:    Lead{Name: "Ada", Email: "ada@localhost"},
			wantErr: ErrEmailInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lead.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_TrimsFields(t *testing.T) {
	l := Lead{Name: "  Ada  ", Email: " ada@example.com ", Company: " Analytical Engines "}
	require.NoError(t, l.Validate())
	assert.Equal(t, "Ada", l.Name)
	assert.Equal(t, "ada@example.com", l.Email)
	assert.Equal(t, "Analytical Engines", l.Company)
}

func TestValidate_FieldTooLong(t *testing.T) {
	l := Lead{Name: "Ada", Email: "ada@example.com", Message: strings.Repeat("x", 2001)}
	err := l.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message")
}

func TestNormalize_FieldAliases(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]any
		want Lead
	}{
		{
			name: "camelCase",
			row: map[string]any{
				"fullName": "Ada Lovelace",
				"email":    "ada@example.com",
				"company":  "Analytical Engines",
			},
			want: Lead{Name: "Ada Lovelace", Email: "ada@example.com", Company: "Analytical Engines"},
		},
		{
			name: "snake_case",
			row: map[string]any{
				"full_name":     "Ada Lovelace",
				"email_address": "ada@example.com",
				"phone_number":  "555-0100",
			},
			want: Lead{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "555-0100"},
		},
		{
			name: "spreadsheet headers",
			row: map[string]any{
				"Full Name": "Ada Lovelace",
				"Mail":      "ada@example.com",
				"Notes":     "interested",
			},
			want: Lead{Name: "Ada Lovelace", Email: "ada@example.com", Message: "interested"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.row)
			got.SubmittedAt = time.Time{}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Timestamps(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want time.Time
	}{
		{
			name: "rfc3339",
			raw:  "2026-02-01T09:30:00Z",
			want: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "date only",
			raw:  "2026-02-01",
			want: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "epoch seconds",
			raw:  float64(1769938200),
			want: time.Unix(1769938200, 0).UTC(),
		},
		{
			name: "epoch milliseconds",
			raw:  float64(1769938200000),
			want: time.UnixMilli(1769938200000).UTC(),
		},
		{
			name: "garbage",
			raw:  "tomorrow-ish",
			want: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(map[string]any{"name": "Ada", "created_at": tt.raw})
			assert.True(t, got.SubmittedAt.Equal(tt.want), "got %v want %v", got.SubmittedAt, tt.want)
		})
	}
}

func TestNormalize_NumericID(t *testing.T) {
	got := Normalize(map[string]any{"id": float64(42), "name": "Ada"})
	assert.Equal(t, "42", got.ID)
}

func TestNormalizeAll_DropsEmptyRows(t *testing.T) {
	rows := []map[string]any{
		{"name": "Ada", "email": "ada@example.com"},
		{"note": "automation noise"},
		{"email": "grace@example.com"},
	}

	leads := NormalizeAll(rows)
	require.Len(t, leads, 2)
	assert.Equal(t, "Ada", leads[0].Name)
	assert.Equal(t, "grace@example.com", leads[1].Email)
}
