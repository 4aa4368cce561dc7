package roomsync

import (
	"sync"
	"time"

	"overlay-sync/internal/models"
)

// echoTolerance is the maximum sent-time distance between a pending local
// echo and a fetched message for the two to be treated as the same send.
const echoTolerance = 5 * time.Second

// defaultMaxSeen bounds the per-room seen-id set. Must stay well above the
// initial page size so a prune never lets a recent id through twice.
const defaultMaxSeen = 2000

// observation is the ledger's verdict on one fetched message.
type observation struct {
	duplicate bool
	// reconciledEchoID is the local echo this message confirms, or empty.
	reconciledEchoID string
}

type pendingEcho struct {
	id     string
	sentAt time.Time
}

// ledger tracks which message ids a room has already delivered and which
// local echoes are still waiting for their server-assigned twin. It is the
// only piece of the loop that is shared with the dispatcher, so it locks.
type ledger struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSeen int
	// pending echoes grouped by author+body fingerprint, oldest first.
	pending map[fingerprint][]pendingEcho
}

type fingerprint struct {
	author string
	body   string
}

func newLedger(maxSeen int) *ledger {
	if maxSeen <= 0 {
		maxSeen = defaultMaxSeen
	}
	return &ledger{
		seen:    make(map[string]struct{}),
		maxSeen: maxSeen,
		pending: make(map[fingerprint][]pendingEcho),
	}
}

// trackEcho registers a locally appended message so that the loop can
// recognise it when it comes back from the remote log.
func (l *ledger) trackEcho(msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fp := fingerprint{author: msg.Author, body: msg.Body}
	l.pending[fp] = append(l.pending[fp], pendingEcho{id: msg.ID, sentAt: msg.SentAt})
}

// observe records a fetched message. Exactly one of three things happens:
// the id was already seen (duplicate), it matches a pending echo
// (reconciledEchoID set), or it is genuinely new.
func (l *ledger) observe(msg models.Message) observation {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[msg.ID]; ok {
		return observation{duplicate: true}
	}
	l.remember(msg.ID)

	fp := fingerprint{author: msg.Author, body: msg.Body}
	queue := l.pending[fp]
	for i, echo := range queue {
		if within(echo.sentAt, msg.SentAt, echoTolerance) {
			l.pending[fp] = append(queue[:i], queue[i+1:]...)
			if len(l.pending[fp]) == 0 {
				delete(l.pending, fp)
			}
			return observation{reconciledEchoID: echo.id}
		}
	}
	return observation{}
}

func (l *ledger) remember(id string) {
	l.seen[id] = struct{}{}
	l.order = append(l.order, id)
	for len(l.order) > l.maxSeen {
		delete(l.seen, l.order[0])
		l.order = l.order[1:]
	}
}

func within(a, b time.Time, d time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= d
}
