package roomsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"overlay-sync/internal/models"
	"overlay-sync/internal/observability"
	"overlay-sync/internal/remote"
)

var (
	// ErrRoomNotOpen is returned when an operation targets a room the
	// engine is not currently syncing.
	ErrRoomNotOpen = errors.New("room is not open")
	// ErrGlobalRoom is returned when a caller tries to close the global
	// room, which stays open for the engine's whole lifetime.
	ErrGlobalRoom = errors.New("the global room cannot be closed")
	// ErrEngineStopped is returned after Shutdown.
	ErrEngineStopped = errors.New("sync engine is stopped")
	// ErrInvalidRoom is returned for blank or unusable room names.
	ErrInvalidRoom = errors.New("invalid room name")
)

// Config tunes the engine's room loops. Zero values fall back to the
// defaults below.
type Config struct {
	PollInterval    time.Duration
	InitialPageSize int
	BackoffBase     time.Duration
	BackoffCap      int
}

const (
	defaultPollInterval    = 2500 * time.Millisecond
	defaultInitialPageSize = 40
	defaultBackoffBase     = 500 * time.Millisecond
	defaultBackoffCap      = 8
)

func (c Config) toLoopConfig() loopConfig {
	lc := loopConfig{
		pollInterval:    c.PollInterval,
		initialPageSize: c.InitialPageSize,
		backoffBase:     c.BackoffBase,
		backoffCap:      c.BackoffCap,
	}
	if lc.pollInterval <= 0 {
		lc.pollInterval = defaultPollInterval
	}
	if lc.initialPageSize <= 0 {
		lc.initialPageSize = defaultInitialPageSize
	}
	if lc.backoffBase <= 0 {
		lc.backoffBase = defaultBackoffBase
	}
	if lc.backoffCap <= 0 {
		lc.backoffCap = defaultBackoffCap
	}
	return lc
}

type runningRoom struct {
	loop   *roomLoop
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine owns the set of open rooms and runs one polling loop per room.
// The global room is opened by Start and stays open until Shutdown.
type Engine struct {
	client remote.Client
	sink   Sink
	cfg    loopConfig
	health *health

	mu      sync.Mutex
	ctx     context.Context
	rooms   map[string]*runningRoom
	wg      sync.WaitGroup
	stopped bool
}

// NewEngine builds an engine; call Start before anything else.
func NewEngine(client remote.Client, sink Sink, cfg Config) *Engine {
	e := &Engine{
		client: client,
		sink:   sink,
		cfg:    cfg.toLoopConfig(),
		rooms:  make(map[string]*runningRoom),
	}
	e.health = newHealth(sink)
	return e
}

// Start binds the engine to ctx and opens the global room. Cancelling ctx
// stops every loop, but Shutdown should still be called to wait for them.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	e.ctx = ctx
	e.mu.Unlock()
	return e.OpenRoom(models.GlobalRoom)
}

// OpenRoom starts syncing a room. Opening a room that is already open is
// a no-op: the existing loop and its cursor are left alone.
func (e *Engine) OpenRoom(room string) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return ErrInvalidRoom
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	if e.ctx == nil {
		return fmt.Errorf("open room %q: engine not started", room)
	}
	if _, ok := e.rooms[room]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(e.ctx)
	rr := &runningRoom{
		loop:   newRoomLoop(room, e.client, e.sink, e.health, e.cfg),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.rooms[room] = rr
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(rr.done)
		rr.loop.run(ctx)
	}()
	log.Printf("room %s: opened", room)
	return nil
}

// CloseRoom stops a room's loop and discards its cursor and ledger. It
// blocks until the loop has exited. The global room is refused.
func (e *Engine) CloseRoom(room string) error {
	if room == models.GlobalRoom {
		return ErrGlobalRoom
	}

	e.mu.Lock()
	rr, ok := e.rooms[room]
	if ok {
		delete(e.rooms, room)
	}
	e.mu.Unlock()
	if !ok {
		return ErrRoomNotOpen
	}

	rr.cancel()
	<-rr.done
	e.health.removeRoom(room)
	observability.ForgetRoom(room)
	log.Printf("room %s: closed", room)
	return nil
}

// Shutdown stops every loop, the global room included, and waits for them
// to exit. The engine cannot be restarted afterwards.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		e.wg.Wait()
		return
	}
	e.stopped = true
	rooms := make([]*runningRoom, 0, len(e.rooms))
	for _, rr := range e.rooms {
		rooms = append(rooms, rr)
	}
	e.rooms = make(map[string]*runningRoom)
	e.mu.Unlock()

	for _, rr := range rooms {
		rr.cancel()
	}
	e.wg.Wait()
}

// IsOpen reports whether a room currently has a running loop.
func (e *Engine) IsOpen(room string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.rooms[room]
	return ok
}

// State returns the snapshot of one open room.
func (e *Engine) State(room string) (models.RoomSyncState, error) {
	e.mu.Lock()
	rr, ok := e.rooms[room]
	e.mu.Unlock()
	if !ok {
		return models.RoomSyncState{}, ErrRoomNotOpen
	}
	return rr.loop.snapshot(), nil
}

// States returns a snapshot of every open room, sorted by room name.
func (e *Engine) States() []models.RoomSyncState {
	e.mu.Lock()
	loops := make([]*roomLoop, 0, len(e.rooms))
	for _, rr := range e.rooms {
		loops = append(loops, rr.loop)
	}
	e.mu.Unlock()

	out := make([]models.RoomSyncState, 0, len(loops))
	for _, rl := range loops {
		out = append(out, rl.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

// Connectivity returns the aggregated signal derived from the global room.
func (e *Engine) Connectivity() models.RoomStatus {
	return e.health.connectivity()
}

// trackEcho registers a local echo with the room's ledger so the loop can
// reconcile it when the confirmed message arrives.
func (e *Engine) trackEcho(room string, msg models.Message) error {
	e.mu.Lock()
	rr, ok := e.rooms[room]
	e.mu.Unlock()
	if !ok {
		return ErrRoomNotOpen
	}
	rr.loop.trackEcho(msg)
	return nil
}
