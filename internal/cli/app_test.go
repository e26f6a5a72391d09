package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wayfinder/internal/errors"
	"wayfinder/internal/resources"
	"wayfinder/internal/session"
)

type fakeServer struct {
	router chi.Router
	url    string

	mu    sync.Mutex
	calls map[string]int
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{router: chi.NewRouter(), calls: map[string]int{}}
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)
	f.url = srv.URL
	return f
}

func (f *fakeServer) handle(method, pattern string, status int, body any) {
	f.router.MethodFunc(method, pattern, func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.calls[method+" "+pattern]++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

func (f *fakeServer) count(method, pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+pattern]
}

func run(t *testing.T, f *fakeServer, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	base := []string{"--config-dir", t.TempDir(), "--api", f.url, "--token", ""}
	err := app.ExecuteWithArgs(context.Background(), append(base, args...))
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, newFakeServer(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wayfinder version")
}

func TestLocation_FetchesConcurrently(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodGet, "/api/locations/{id}", http.StatusOK, resources.Location{ID: "loc-1", Name: "Pier"})
	f.handle(http.MethodGet, "/api/locations/{id}/metrics", http.StatusOK, resources.LocationMetrics{LocationID: "loc-1", ReviewCount: 3})
	f.handle(http.MethodGet, "/api/locations/{id}/precautions", http.StatusOK, []resources.Precaution{{ID: "p1", Title: "Slippery"}})
	f.handle(http.MethodGet, "/api/locations/{id}/review", http.StatusOK, resources.Review{TimeOfDay: "night", Rating: 4})

	out, err := run(t, f, "location", "loc-1", "--time-of-day", "night")
	require.NoError(t, err)

	var view locationView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Pier", view.Location.Name)
	assert.Equal(t, 3, view.Metrics.ReviewCount)
	assert.Len(t, view.Precautions, 1)
	require.NotNil(t, view.Review)
	assert.Equal(t, 4, view.Review.Rating)
	assert.Nil(t, view.MyReview, "signed out users have no own review")
	assert.Equal(t, 1, f.count(http.MethodGet, "/api/locations/{id}/review"))
}

func TestLocation_ServerMessage(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodGet, "/api/locations/{id}", http.StatusNotFound, map[string]string{"error": "No such place"})
	f.handle(http.MethodGet, "/api/locations/{id}/metrics", http.StatusOK, resources.LocationMetrics{})
	f.handle(http.MethodGet, "/api/locations/{id}/precautions", http.StatusOK, []resources.Precaution{})

	_, err := run(t, f, "location", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such place")
}

func TestMe_RequiresSession(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodGet, "/api/users/me", http.StatusOK, resources.User{ID: "u1"})

	_, err := run(t, f, "me")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDisabled)
	assert.Contains(t, err.Error(), "signed in")
	assert.Zero(t, f.count(http.MethodGet, "/api/users/me"))
}

func TestFeed_PrefetchesNextPage(t *testing.T) {
	f := newFakeServer(t)
	var calls int32
	f.router.Get("/api/community/feed", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		page := resources.FeedPage{Items: []resources.Post{{ID: "p1"}}, NextCursor: "c2"}
		if r.URL.Query().Get("cursor") == "c2" {
			page = resources.FeedPage{Items: []resources.Post{{ID: "p2"}}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	})

	out, err := run(t, f, "feed", "--limit", "1", "--pages", "3")
	require.NoError(t, err)

	var ids []string
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var page resources.FeedPage
		require.NoError(t, dec.Decode(&page))
		for _, p := range page.Items {
			ids = append(ids, p.ID)
		}
	}
	assert.Equal(t, []string{"p1", "p2"}, ids)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "the prefetched page is not requested twice")
}

func TestMe_SignedIn(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodGet, "/api/users/me", http.StatusOK, resources.User{ID: "u1", Name: "Ana"})
	f.handle(http.MethodGet, "/api/referrals/code", http.StatusOK, resources.ReferralCode{Code: "ANA1"})
	f.handle(http.MethodGet, "/api/referrals/stats", http.StatusOK, resources.ReferralStats{})

	v, err := session.NewVerifier(session.VerifierConfig{Secret: "any"})
	require.NoError(t, err)
	token, err := v.Issue("u1", "ana@example.com", time.Hour)
	require.NoError(t, err)

	out, err := run(t, f, "--token", token, "me")
	require.NoError(t, err)

	var view meView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Ana", view.User.Name)
	assert.Equal(t, "ANA1", view.Referral.Code)
}

func TestVote(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodPost, "/api/posts/{postId}/votes", http.StatusConflict, map[string]string{"message": "Voting is closed"})

	_, err := run(t, f, "vote", "post-1", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Voting is closed")
	assert.Equal(t, 1, f.count(http.MethodPost, "/api/posts/{postId}/votes"), "mutations are not retried")

	_, err = run(t, f, "vote", "post-1", "7")
	require.Error(t, err)
	assert.Equal(t, 1, f.count(http.MethodPost, "/api/posts/{postId}/votes"), "invalid votes never leave the client")
}

func TestProductionClientNeedsNoServerSecrets(t *testing.T) {
	f := newFakeServer(t)
	f.handle(http.MethodGet, "/api/posts/{id}", http.StatusOK, resources.Post{ID: "post-1"})
	f.handle(http.MethodGet, "/api/posts/{id}/comments", http.StatusOK, []resources.Comment{})
	f.handle(http.MethodGet, "/api/posts/{id}/votes", http.StatusOK, resources.VoteTally{PostID: "post-1"})
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("UPLOAD_API_SECRET", "")

	var stdout bytes.Buffer
	err := New().WithOutput(&stdout, &bytes.Buffer{}).ExecuteWithArgs(context.Background(),
		[]string{"--config-dir", t.TempDir(), "--api", f.url, "--token", "", "post", "post-1"})
	require.NoError(t, err)

	var view postView
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &view))
	assert.Equal(t, "post-1", view.Post.ID)
}
