// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mibmo/freestuffapi-go/internal/cache"
	"github.com/mibmo/freestuffapi-go/internal/config"
	"github.com/mibmo/freestuffapi-go/internal/health"
	"github.com/mibmo/freestuffapi-go/internal/jobs"
	"github.com/mibmo/freestuffapi-go/internal/store"
	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

type fakeRunner struct {
	mu           sync.Mutex
	runErr       error
	refreshErr   error
	status       jobs.Status
	running      bool
	runCalls     int
	refreshedIDs []freestuff.GameID
}

func (f *fakeRunner) RunNow(ctx context.Context) (*jobs.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls++
	if f.runErr != nil {
		return nil, f.runErr
	}
	st := f.status
	return &st, nil
}

func (f *fakeRunner) RefreshGames(ctx context.Context, ids []freestuff.GameID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.refreshedIDs = append(f.refreshedIDs, ids...)
	return nil
}

func (f *fakeRunner) Status() jobs.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeRunner) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeRunner) ingested() []freestuff.GameID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]freestuff.GameID(nil), f.refreshedIDs...)
}

type fakeFetcher struct {
	mu    sync.Mutex
	games map[freestuff.GameID]freestuff.GameInfo
	err   error
	calls int
}

func (f *fakeFetcher) GameDetail(ctx context.Context, id freestuff.GameID) (freestuff.GameInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return freestuff.GameInfo{}, f.err
	}
	g, ok := f.games[id]
	if !ok {
		return freestuff.GameInfo{}, freestuff.ErrNotFound
	}
	return g, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testServer struct {
	srv     *Server
	handler http.Handler
	runner  *fakeRunner
	fetcher *fakeFetcher
	store   store.Store
	dataDir string
}

func newTestServer(t *testing.T, mutate func(*config.AppConfig)) *testServer {
	t.Helper()

	cfg := config.AppConfig{
		DataDir:       t.TempDir(),
		FeedPath:      "feed.json",
		AuthAnonymous: true,
		WebhookSecret: "hook-secret",
		CacheTTL:      time.Minute,
		LogService:    "freestuffd-test",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	runner := &fakeRunner{}
	fetcher := &fakeFetcher{games: map[freestuff.GameID]freestuff.GameInfo{}}
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })

	srv, err := New(cfg, Deps{
		Runner:  runner,
		Store:   st,
		Cache:   cache.NewMemory(0),
		Fetcher: fetcher,
		Health:  health.NewManager("test"),
		Version: "test",
	})
	require.NoError(t, err)

	return &testServer{
		srv:     srv,
		handler: srv.Handler(),
		runner:  runner,
		fetcher: fetcher,
		store:   st,
		dataDir: cfg.DataDir,
	}
}

func seedAnnouncements(t *testing.T, st store.Store, anns ...store.Announcement) {
	t.Helper()
	require.NoError(t, st.Upsert(context.Background(), anns))
}

func announcement(id freestuff.GameID, title string, active bool) store.Announcement {
	return store.Announcement{
		ID:        id,
		Title:     title,
		Store:     freestuff.StoreSteam,
		Kind:      freestuff.KindGame,
		Type:      freestuff.TypeFree,
		Category:  string(freestuff.CategoryFree),
		Active:    active,
		FirstSeen: time.Now().Add(-time.Hour),
		LastSeen:  time.Now(),
		Detail:    freestuff.GameInfo{Title: title, Store: freestuff.StoreSteam},
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	st := store.NewMemory()
	hm := health.NewManager("test")

	_, err := New(config.AppConfig{}, Deps{Store: st, Health: hm})
	assert.Error(t, err, "missing runner must be rejected")

	_, err = New(config.AppConfig{}, Deps{Runner: &fakeRunner{}, Health: hm})
	assert.Error(t, err, "missing store must be rejected")

	_, err = New(config.AppConfig{}, Deps{Runner: &fakeRunner{}, Store: st})
	assert.Error(t, err, "missing health manager must be rejected")

	srv, err := New(config.AppConfig{}, Deps{Runner: &fakeRunner{}, Store: st, Health: hm})
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.runner.status = jobs.Status{LastRun: time.Now(), Games: 12, NewGames: 2, Ended: 1}
	ts.runner.running = true

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "freestuffd", got.Service)
	assert.Equal(t, "test", got.Version)
	assert.True(t, got.Refreshing)
	assert.Equal(t, 12, got.LastRefresh.Games)
	assert.GreaterOrEqual(t, got.UptimeSeconds, int64(0))
}

func TestHandleGameList(t *testing.T) {
	ts := newTestServer(t, nil)
	seedAnnouncements(t, ts.store,
		announcement(100, "Alpha Quest", true),
		announcement(200, "Beta Blaster", false),
	)

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantCount int
	}{
		{name: "all games", target: "/api/games", wantCode: http.StatusOK, wantCount: 2},
		{name: "active only", target: "/api/games?active=true", wantCode: http.StatusOK, wantCount: 1},
		{name: "title search", target: "/api/games?q=beta", wantCode: http.StatusOK, wantCount: 1},
		{name: "store filter", target: "/api/games?store=epic", wantCode: http.StatusOK, wantCount: 0},
		{name: "invalid active", target: "/api/games?active=maybe", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			w := httptest.NewRecorder()
			ts.handler.ServeHTTP(w, req)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var got gameListResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.wantCount, got.Count)
			assert.Len(t, got.Games, tt.wantCount)
		})
	}
}

func TestHandleGameList_EmptyStoreReturnsEmptyArray(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"games":[]`, "empty list must encode as [], not null")
}

func TestHandleGameDetail(t *testing.T) {
	ts := newTestServer(t, nil)
	seedAnnouncements(t, ts.store, announcement(100, "Alpha Quest", true))

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/games/100", nil)
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got store.Announcement
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, freestuff.GameID(100), got.ID)
		assert.Equal(t, "Alpha Quest", got.Title)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/games/999", nil)
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/games/not-a-number", nil)
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleGameDetail_Fresh(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.fetcher.games[300] = freestuff.GameInfo{Title: "Gamma Run", Store: freestuff.StoreEpic}

	req := httptest.NewRequest(http.MethodGet, "/api/games/300?fresh=1", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got freestuff.GameInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Gamma Run", got.Title)
	assert.Equal(t, 1, ts.fetcher.callCount())

	// Second read is answered from the cache.
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/games/300?fresh=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.fetcher.callCount(), "cache hit must not reach upstream")
}

func TestHandleGameDetail_FreshUnknownGame(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/games/404?fresh=1", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGameDetail_FreshUpstreamDown(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.fetcher.err = freestuff.ErrUnavailable

	req := httptest.NewRequest(http.MethodGet, "/api/games/300?fresh=1", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleGameDetail_FreshWithoutFetcher(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.srv.fetcher = nil

	req := httptest.NewRequest(http.MethodGet, "/api/games/300?fresh=1", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleFeed(t *testing.T) {
	ts := newTestServer(t, nil)
	feed := `{"version":"https://jsonfeed.org/version/1.1","items":[]}`
	require.NoError(t, os.WriteFile(filepath.Join(ts.dataDir, "feed.json"), []byte(feed), 0o600))

	req := httptest.NewRequest(http.MethodGet, "/feed.json", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, feed, w.Body.String())
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age=60")
}

func TestHandleFeed_NotWrittenYet(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/feed.json", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleFeed_RejectsTraversal(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.AppConfig) {
		cfg.FeedPath = "../outside.json"
	})

	req := httptest.NewRequest(http.MethodGet, "/feed.json", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDataFilePath(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{name: "plain file", rel: "feed.json", wantErr: false},
		{name: "nested file", rel: "sub/feed.json", wantErr: false},
		{name: "absolute path", rel: "/etc/passwd", wantErr: true},
		{name: "traversal", rel: "../secrets.json", wantErr: true},
		{name: "hidden traversal", rel: "sub/../../secrets.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ts.srv.dataFilePath(tt.rel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(got))
		})
	}
}

func TestDataFilePath_RejectsDirectory(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, os.Mkdir(filepath.Join(ts.dataDir, "subdir"), 0o750))

	_, err := ts.srv.dataFilePath("subdir")
	assert.Error(t, err)
}

func TestUpdateConfig_SwapsWebhookSecret(t *testing.T) {
	ts := newTestServer(t, nil)

	cfg := ts.srv.config()
	cfg.WebhookSecret = "rotated"
	ts.srv.UpdateConfig(cfg)

	assert.Equal(t, "rotated", ts.srv.config().WebhookSecret)
}
