package roomsync

import (
	"context"
	"log"
	"sync"
	"time"

	"overlay-sync/internal/models"
	"overlay-sync/internal/observability"
	"overlay-sync/internal/remote"
)

// loopConfig carries the tuning knobs one room loop runs with.
type loopConfig struct {
	pollInterval    time.Duration
	initialPageSize int
	backoffBase     time.Duration
	backoffCap      int
}

// roomLoop polls one room's slice of the remote log and feeds the results
// through the dedup ledger to the sink. It owns its cursor: the cursor
// only ever moves forward, and it never moves on a failed poll.
type roomLoop struct {
	room   string
	client remote.Client
	ledger *ledger
	sink   Sink
	health *health
	cfg    loopConfig

	mu         sync.Mutex
	cursor     string
	failures   int
	lastPollAt time.Time
	status     models.RoomStatus
}

func newRoomLoop(room string, client remote.Client, sink Sink, h *health, cfg loopConfig) *roomLoop {
	return &roomLoop{
		room:   room,
		client: client,
		ledger: newLedger(0),
		sink:   sink,
		health: h,
		cfg:    cfg,
		status: models.StatusHealthy,
	}
}

// run drives the loop until ctx is cancelled. It polls immediately, then
// sleeps the poll interval after a success or the backoff delay after a
// failure. Closing the room is the only way out.
func (rl *roomLoop) run(ctx context.Context) {
	rl.health.setStatus(rl.room, models.StatusHealthy)
	observability.SetRoomStatus(rl.room, models.StatusHealthy)

	for {
		delay := rl.poll(ctx)
		if err := waitWithContext(ctx, delay); err != nil {
			rl.stop()
			return
		}
	}
}

// poll performs one fetch and returns how long to wait before the next.
func (rl *roomLoop) poll(ctx context.Context) time.Duration {
	rl.mu.Lock()
	cursor := rl.cursor
	rl.lastPollAt = time.Now()
	rl.mu.Unlock()

	var msgs []models.Message
	var err error
	if cursor == "" {
		msgs, err = rl.client.FetchRecent(ctx, rl.room, rl.cfg.initialPageSize)
	} else {
		msgs, err = rl.client.FetchAfter(ctx, rl.room, cursor)
	}
	if err != nil {
		if remote.IsCancelled(err) {
			return 0
		}
		return rl.recordFailure(err)
	}

	for _, msg := range msgs {
		rl.deliver(msg)
	}
	return rl.recordSuccess()
}

// deliver routes one fetched message through the ledger and advances the
// cursor past it. Duplicates still advance the cursor; the id has been
// consumed either way.
func (rl *roomLoop) deliver(msg models.Message) {
	obs := rl.ledger.observe(msg)

	rl.mu.Lock()
	rl.cursor = msg.ID
	rl.mu.Unlock()

	switch {
	case obs.duplicate:
		observability.IncDuplicate(rl.room)
	case obs.reconciledEchoID != "":
		observability.IncReconciled(rl.room)
		rl.sink.OnEchoReconciled(rl.room, obs.reconciledEchoID, msg)
	default:
		observability.IncDelivered(rl.room)
		rl.sink.OnMessage(rl.room, msg)
	}
}

func (rl *roomLoop) recordSuccess() time.Duration {
	rl.mu.Lock()
	rl.failures = 0
	changed := rl.status != models.StatusHealthy
	rl.status = models.StatusHealthy
	rl.mu.Unlock()

	observability.IncPoll(rl.room, "ok")
	observability.SetFailures(rl.room, 0)
	if changed {
		observability.SetRoomStatus(rl.room, models.StatusHealthy)
		rl.health.setStatus(rl.room, models.StatusHealthy)
		log.Printf("room %s: recovered", rl.room)
	}
	return rl.cfg.pollInterval
}

func (rl *roomLoop) recordFailure(err error) time.Duration {
	rl.mu.Lock()
	rl.failures++
	failures := rl.failures
	changed := rl.status != models.StatusDegraded
	rl.status = models.StatusDegraded
	rl.mu.Unlock()

	observability.IncPoll(rl.room, "error")
	observability.SetFailures(rl.room, failures)
	if changed {
		observability.SetRoomStatus(rl.room, models.StatusDegraded)
		rl.health.setStatus(rl.room, models.StatusDegraded)
	}
	log.Printf("room %s: poll failed (attempt %d): %v", rl.room, failures, err)

	steps := failures
	if steps > rl.cfg.backoffCap {
		steps = rl.cfg.backoffCap
	}
	return time.Duration(steps) * rl.cfg.backoffBase
}

func (rl *roomLoop) stop() {
	rl.mu.Lock()
	rl.status = models.StatusStopped
	rl.mu.Unlock()
	observability.SetRoomStatus(rl.room, models.StatusStopped)
	rl.health.setStatus(rl.room, models.StatusStopped)
}

// trackEcho hands a local echo to this room's ledger.
func (rl *roomLoop) trackEcho(msg models.Message) {
	rl.ledger.trackEcho(msg)
}

// snapshot reports the loop's current state.
func (rl *roomLoop) snapshot() models.RoomSyncState {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return models.RoomSyncState{
		Room:                rl.room,
		Cursor:              rl.cursor,
		ConsecutiveFailures: rl.failures,
		LastPollAt:          rl.lastPollAt,
		Status:              rl.status,
	}
}

// waitWithContext sleeps for d unless ctx is cancelled first. A zero or
// negative d still checks the context once before returning.
func waitWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
