package server

import (
	"errors"
	"testing"
	"time"

	"popchat/internal/stats"
	"popchat/internal/store"
	"popchat/internal/testutil"
)

func TestReaper_SweepDestroysIdleRooms(t *testing.T) {
	repo := &store.MockRepository{}
	repo.On("ListInactiveRooms", 10*time.Minute).Return([]store.Room{{Id: "stale"}}, nil)
	repo.On("GetRoom", "stale").Return(store.Room{Id: "stale"}, nil)
	repo.On("DeleteRoom", "stale").Return(nil)

	su := &stats.MockStatsUpdater{}
	cs := newTestChatServer(t, repo, su)
	go cs.Run()
	defer shutdownChatServer(t, cs)

	rp := NewReaper(cs, testutil.TestLogger(t), time.Hour, 10*time.Minute)
	rp.sweep()

	repo.AssertCalled(t, "DeleteRoom", "stale")
	su.AssertCalled(t, "Incr", "NumRoomsReaped")
}

func TestReaper_SweepContinuesPastErrors(t *testing.T) {
	repo := &store.MockRepository{}
	repo.On("ListInactiveRooms", 10*time.Minute).Return([]store.Room{{Id: "bad"}, {Id: "good"}}, nil)
	repo.On("GetRoom", "bad").Return(store.Room{}, errors.New("backend unavailable"))
	repo.On("GetRoom", "good").Return(store.Room{Id: "good"}, nil)
	repo.On("DeleteRoom", "good").Return(nil)

	cs := newTestChatServer(t, repo, &stats.MockStatsUpdater{})
	go cs.Run()
	defer shutdownChatServer(t, cs)

	rp := NewReaper(cs, testutil.TestLogger(t), time.Hour, 10*time.Minute)
	rp.sweep()

	repo.AssertCalled(t, "DeleteRoom", "good")
	repo.AssertNotCalled(t, "DeleteRoom", "bad")
}

func TestReaper_RunAndStop(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})
	go cs.Run()
	defer shutdownChatServer(t, cs)

	rp := NewReaper(cs, testutil.TestLogger(t), 10*time.Millisecond, 10*time.Minute)
	go rp.Run()

	time.Sleep(30 * time.Millisecond)
	rp.Stop()

	select {
	case <-rp.done:
	default:
		t.Fatal("expected the reaper loop to have exited")
	}
}
