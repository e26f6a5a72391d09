package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wayfinder/internal/errors"
)

type reviewParams struct {
	LocationID string `path:"id" json:"-" validate:"required"`
	TimeOfDay  string `query:"timeOfDay" json:"-" validate:"required"`
}

type commentParams struct {
	ID         string `path:"id" json:"-" validate:"required"`
	LocationID string `json:"-" validate:"required"`
	Body       string `json:"body" validate:"required,max=2000"`
}

type feedParams struct {
	Limit  int    `query:"limit" validate:"gt=0"`
	Cursor string `query:"cursor"`
}

type reviewBody struct {
	Rating  float64 `json:"rating"`
	Summary string  `json:"summary"`
}

var (
	getReview   = Get[reviewParams, reviewBody]("locationReview", "/api/locations/{id}/review")
	editComment = Put[commentParams, map[string]string]("editComment", "/api/comments/{id}")
	getFeed     = Get[feedParams, []string]("communityFeed", "/api/community/feed")
)

func TestEndpoint_Build(t *testing.T) {
	t.Run("path and query parameters", func(t *testing.T) {
		req, err := getReview.Build(reviewParams{LocationID: "loc 1", TimeOfDay: "morning"})
		require.NoError(t, err)
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/api/locations/loc%201/review", req.Path)
		assert.Equal(t, "morning", req.Query.Get("timeOfDay"))
		assert.Nil(t, req.Body)
	})

	t.Run("body for writes", func(t *testing.T) {
		req, err := editComment.Build(commentParams{ID: "c-1", LocationID: "loc-1", Body: "updated"})
		require.NoError(t, err)
		assert.Equal(t, "/api/comments/c-1", req.Path)
		assert.JSONEq(t, `{"body":"updated"}`, string(req.Body))
	})

	t.Run("zero query values are omitted", func(t *testing.T) {
		req, err := getFeed.Build(feedParams{Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, "limit=20", req.Query.Encode())
	})

	t.Run("missing path parameter", func(t *testing.T) {
		_, err := getReview.Build(reviewParams{TimeOfDay: "morning"})
		assert.Error(t, err)
	})
}

func TestEndpoint_ReadyAndArgs(t *testing.T) {
	assert.NoError(t, getReview.Ready(reviewParams{LocationID: "loc-1", TimeOfDay: "morning"}))
	assert.Error(t, getReview.Ready(reviewParams{LocationID: "loc-1"}))
	assert.Error(t, getFeed.Ready(feedParams{}))

	args := getReview.Args(reviewParams{LocationID: "loc-1", TimeOfDay: "morning"})
	if diff := cmp.Diff([]any{"loc-1", "morning"}, args); diff != "" {
		t.Errorf("Args() mismatch (-want +got):\n%s", diff)
	}

	args = getFeed.Args(feedParams{Limit: 10})
	if diff := cmp.Diff([]any{10, ""}, args); diff != "" {
		t.Errorf("Args() mismatch (-want +got):\n%s", diff)
	}

	none := Get[struct{}, string]("currentUser", "/api/users/me")
	assert.NoError(t, none.Ready(struct{}{}))
	assert.Empty(t, none.Args(struct{}{}))
}

func TestClient_Call(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		switch r.URL.Path {
		case "/api/locations/loc-1/review":
			assert.Equal(t, "evening", r.URL.Query().Get("timeOfDay"))
			json.NewEncoder(w).Encode(reviewBody{Rating: 4.5, Summary: "Quiet"})
		case "/api/locations/missing/review":
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"Location not found"}`)
		case "/api/locations/opaque/review":
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `<html>bad</html>`)
		case "/api/locations/garbled/review":
			io.WriteString(w, `{"rating":`)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL: server.URL,
		Tokens:  func(context.Context) string { return "tok-123" },
	})
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		got, err := Call(ctx, client, getReview, reviewParams{LocationID: "loc-1", TimeOfDay: "evening"}, "Failed to fetch review")
		require.NoError(t, err)
		assert.Equal(t, reviewBody{Rating: 4.5, Summary: "Quiet"}, got)
		assert.Equal(t, "Bearer tok-123", gotAuth)
		assert.NotEmpty(t, gotRequestID)
	})

	t.Run("server message", func(t *testing.T) {
		_, err := Call(ctx, client, getReview, reviewParams{LocationID: "missing", TimeOfDay: "evening"}, "Failed to fetch review")
		qe, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.KindFetchFailed, qe.Kind)
		assert.Equal(t, http.StatusNotFound, qe.StatusCode)
		assert.Equal(t, "Location not found", qe.Message)
	})

	t.Run("fallback message", func(t *testing.T) {
		_, err := Call(ctx, client, getReview, reviewParams{LocationID: "opaque", TimeOfDay: "evening"}, "Failed to fetch review")
		qe, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "Failed to fetch review", qe.Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := Call(ctx, client, getReview, reviewParams{LocationID: "garbled", TimeOfDay: "evening"}, "Failed to fetch review")
		assert.ErrorIs(t, err, apperrors.ErrNetworkOrParse)
	})
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url, Timeout: time.Second})
	_, err := Call(context.Background(), client, getFeed, feedParams{Limit: 5}, "Failed to load feed")

	assert.ErrorIs(t, err, apperrors.ErrNetworkOrParse)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL: server.URL,
		Breaker: BreakerConfig{
			Name:             "test",
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 0.5,
			MinRequests:      2,
		},
	})

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), client, getFeed, feedParams{Limit: 1}, "Failed to load feed")
		assert.ErrorIs(t, err, apperrors.ErrFetchFailed)
	}

	_, err := Call(context.Background(), client, getFeed, feedParams{Limit: 1}, "Failed to load feed")
	assert.ErrorIs(t, err, apperrors.ErrNetworkOrParse)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker must short-circuit")
}

type recordingMetrics struct {
	statuses []int
}

func (m *recordingMetrics) ObserveRequest(_ string, status int, _ time.Duration) {
	m.statuses = append(m.statuses, status)
}

func TestClient_ObservesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `["a","b"]`)
	}))
	defer server.Close()

	m := &recordingMetrics{}
	client := NewClient(Config{BaseURL: server.URL, Metrics: m})

	got, err := Call(context.Background(), client, getFeed, feedParams{Limit: 2}, "Failed to load feed")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []int{http.StatusOK}, m.statuses)
}
