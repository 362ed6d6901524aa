package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aelexs/realtime-chat-client/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: "hello", want: "hello"},
		{name: "trimmed", raw: "  hello  \n", want: "hello"},
		{name: "empty", raw: "", wantErr: true},
		{name: "spaces only", raw: "   ", wantErr: true},
		{name: "too large", raw: strings.Repeat("a", domain.MaxContentSize+1), wantErr: true},
		{name: "exactly max", raw: strings.Repeat("a", domain.MaxContentSize), want: strings.Repeat("a", domain.MaxContentSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.NormalizeContent(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "RFC 3339", raw: "2024-01-01T00:00:00Z", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "RFC 3339 with offset", raw: "2024-01-01T02:00:00+02:00", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "SQL form", raw: "2024-03-05 14:07:09", want: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)},
		{name: "SQL form with fraction", raw: "2024-03-05 14:07:09.250", want: time.Date(2024, 3, 5, 14, 7, 9, 250_000_000, time.UTC)},
		{name: "ISO without zone", raw: "2024-03-05T14:07:09", want: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)},
		{name: "empty is zero", raw: "", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseTimestamp(tt.raw)

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}

	t.Run("garbage is invalid", func(t *testing.T) {
		_, err := domain.ParseTimestamp("yesterday")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
