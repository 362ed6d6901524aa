package directory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/realtime-chat-client/internal/directory"
	"github.com/aelexs/realtime-chat-client/internal/domain"
)

func newClient(t *testing.T, handler http.HandlerFunc) *directory.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return directory.NewClient(base, srv.Client(), nil)
}

func TestLookup(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/users/alice", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u-1","username":"alice"}`))
		})

		user, err := client.Lookup(context.Background(), "alice")

		require.NoError(t, err)
		assert.Equal(t, "u-1", string(user.ID))
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("username is path escaped", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/mary%20ann", r.URL.EscapedPath())
			_, _ = w.Write([]byte(`{"id":7,"username":"mary ann"}`))
		})

		user, err := client.Lookup(context.Background(), "mary ann")

		require.NoError(t, err)
		assert.Equal(t, "7", string(user.ID))
	})

	t.Run("not found", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"User not found"}`))
		})

		_, err := client.Lookup(context.Background(), "alice")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("server fault", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.Lookup(context.Background(), "alice")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
	})

	t.Run("garbage body", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})

		_, err := client.Lookup(context.Background(), "alice")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base, err := url.Parse(srv.URL)
		require.NoError(t, err)
		srv.Close()

		client := directory.NewClient(base, &http.Client{Timeout: time.Second}, nil)
		_, err = client.Lookup(context.Background(), "alice")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
	})

	t.Run("cancelled context", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id":"u-1","username":"alice"}`))
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Lookup(ctx, "alice")

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/users", r.URL.Path)
			assert.Equal(t, "alice", r.URL.Query().Get("username"))
			_, _ = w.Write([]byte(`{"id":"u-1","username":"alice"}`))
		})

		user, err := client.Register(context.Background(), "alice")

		require.NoError(t, err)
		assert.Equal(t, "u-1", string(user.ID))
	})

	t.Run("duplicate", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Username already exists"}`))
		})

		_, err := client.Register(context.Background(), "alice")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("base path is kept", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_, _ = w.Write([]byte(`{"id":"u-1","username":"alice"}`))
		}))
		t.Cleanup(srv.Close)
		base, err := url.Parse(srv.URL + "/api/")
		require.NoError(t, err)

		_, err = directory.NewClient(base, srv.Client(), nil).Register(context.Background(), "alice")

		require.NoError(t, err)
		assert.Equal(t, "/api/users", gotPath)
	})
}

func TestHistory(t *testing.T) {
	t.Run("oldest first", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/messages", r.URL.Path)
			assert.Equal(t, "3", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`[
				{"id":"9f1c","user_id":"u-2","username":"bob","content":"first","timestamp":"2024-01-01 10:00:00"},
				{"id":12,"user_id":"u-3","username":"carol","content":"second","timestamp":"2024-01-01 10:00:05"}
			]`))
		})

		got, err := client.History(context.Background(), 3)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "9f1c", got[0].ID.String())
		assert.Equal(t, "first", got[0].Content)
		assert.Equal(t, "12", got[1].ID.String())
		assert.True(t, got[1].Timestamp.Equal(time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)))
	})

	t.Run("empty", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})

		got, err := client.History(context.Background(), 50)

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("non-positive limit makes no call", func(t *testing.T) {
		calls := 0
		client := newClient(t, func(http.ResponseWriter, *http.Request) { calls++ })

		_, err := client.History(context.Background(), 0)

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, calls)
	})

	t.Run("malformed entry", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"username":"bob","content":""}]`))
		})

		_, err := client.History(context.Background(), 5)

		assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
		assert.False(t, domain.IsInputRejected(err))
	})

	t.Run("server fault", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.History(context.Background(), 5)

		assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
	})
}
