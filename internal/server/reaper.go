package server

import (
	"context"
	"log"
	"time"
)

const reapDestroyTimeout = 10 * time.Second

// Reaper periodically destroys rooms that have been inactive for longer
// than the configured threshold, using the same destroy path as an
// explicit delete so connected clients are notified first.
type Reaper struct {
	cs        *ChatServer
	log       *log.Logger
	interval  time.Duration
	threshold time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewReaper(cs *ChatServer, logger *log.Logger, interval, threshold time.Duration) *Reaper {
	return &Reaper{
		cs:        cs,
		log:       logger,
		interval:  interval,
		threshold: threshold,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (rp *Reaper) Run() {
	ticker := time.NewTicker(rp.interval)
	defer func() {
		ticker.Stop()
		close(rp.done)
	}()

	for {
		select {
		case <-ticker.C:
			rp.sweep()
		case <-rp.stop:
			return
		}
	}
}

// sweep destroys every room past the inactivity threshold. A failure on
// one room must not abort the sweep of the rest.
func (rp *Reaper) sweep() {
	rooms, err := rp.cs.repo.ListInactiveRooms(rp.threshold)
	if err != nil {
		rp.log.Println("reaper: list inactive rooms:", err)
		return
	}

	for _, room := range rooms {
		ctx, cancel := context.WithTimeout(context.Background(), reapDestroyTimeout)
		if err := rp.cs.DestroyRoom(ctx, room.Id); err != nil {
			rp.log.Printf("reaper: destroy room %q: %v", room.Id, err)
		} else {
			rp.log.Printf("reaper: destroyed idle room %q", room.Id)
			rp.cs.stats.Incr("NumRoomsReaped")
		}
		cancel()
	}
}

func (rp *Reaper) Stop() {
	close(rp.stop)
	<-rp.done
}
