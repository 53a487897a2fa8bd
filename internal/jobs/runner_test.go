// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mibmo/freestuffapi-go/pkg/freestuff"
)

func TestRunner_RunNow_Busy(t *testing.T) {
	f := newFixture(t)
	f.client.lists[freestuff.CategoryFree] = []freestuff.GameID{1}
	f.addGame(1, "Alpha")
	r := NewRunner(f.ref)

	r.busy.Store(true)
	if !r.Running() {
		t.Error("Running() = false while busy")
	}
	if _, err := r.RunNow(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("RunNow() = %v, want ErrBusy", err)
	}
	if err := r.RefreshGames(context.Background(), []freestuff.GameID{1}); !errors.Is(err, ErrBusy) {
		t.Errorf("RefreshGames() = %v, want ErrBusy", err)
	}
	r.busy.Store(false)

	st, err := r.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow() failed: %v", err)
	}
	if st.Games != 1 {
		t.Errorf("games = %d, want 1", st.Games)
	}
	if r.Running() {
		t.Error("Running() = true after RunNow returned")
	}
}

func TestRunner_StatusKeepsCountsOnFailure(t *testing.T) {
	f := newFixture(t)
	f.client.lists[freestuff.CategoryFree] = []freestuff.GameID{1, 2}
	f.addGame(1, "Alpha")
	f.addGame(2, "Beta")
	r := NewRunner(f.ref)

	if _, err := r.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow() failed: %v", err)
	}
	okStatus := r.Status()
	if okStatus.Games != 2 || okStatus.Error != "" {
		t.Fatalf("status = %+v, want 2 games without error", okStatus)
	}

	f.client.mu.Lock()
	f.client.listErr = errors.New("listing broken")
	f.client.mu.Unlock()

	if _, err := r.RunNow(context.Background()); err == nil {
		t.Fatal("RunNow() = nil error, want list failure")
	}

	st := r.Status()
	if st.Error == "" {
		t.Error("status error empty after failed refresh")
	}
	if st.Games != 2 || !st.LastRun.Equal(okStatus.LastRun) {
		t.Errorf("status = %+v, want counts from last success preserved", st)
	}
}

func TestRunner_StartRunsInitialRefresh(t *testing.T) {
	f := newFixture(t)
	f.client.lists[freestuff.CategoryFree] = []freestuff.GameID{1}
	f.addGame(1, "Alpha")
	r := NewRunner(f.ref)
	r.Reconfigure(Config{
		Categories:        []string{"free"},
		DetailConcurrency: 2,
		FeedPath:          f.feedPath,
		Interval:          time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for r.Status().Games != 1 {
		select {
		case <-deadline:
			t.Fatal("initial refresh never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}

func TestRunner_NextDelay(t *testing.T) {
	f := newFixture(t)
	r := NewRunner(f.ref)

	r.Reconfigure(Config{Interval: 10 * time.Minute})
	if got := r.nextDelay(); got != 10*time.Minute {
		t.Errorf("nextDelay() = %s, want 10m without jitter", got)
	}

	r.Reconfigure(Config{Interval: 10 * time.Minute, Jitter: 5 * time.Minute})
	for i := 0; i < 20; i++ {
		got := r.nextDelay()
		if got < 10*time.Minute || got >= 15*time.Minute {
			t.Fatalf("nextDelay() = %s, want in [10m, 15m)", got)
		}
	}

	r.Reconfigure(Config{})
	if got := r.nextDelay(); got != defaultInterval {
		t.Errorf("nextDelay() = %s, want default %s", got, defaultInterval)
	}
}
