package session

import (
	"strings"
	"time"

	"github.com/danmuck/scramctl/internal/protocol/handshake"
)

// AttemptRecord tracks one handshake attempt inside an Authenticate call.
type AttemptRecord struct {
	AttemptID   string
	AuthID      string
	Number      int
	Delay       time.Duration
	IdleTimeout time.Duration
	StartedAt   time.Time
	Duration    time.Duration
	Reached     handshake.State
	Failure     handshake.FailureKind
	Succeeded   bool
	LastError   string
}

// AttemptLog keeps attempt records in execution order. It belongs to one
// Authenticate call and is not safe for concurrent use.
type AttemptLog struct {
	items []AttemptRecord
}

func NewAttemptLog() *AttemptLog {
	return &AttemptLog{}
}

// Record folds a handshake result into pending and appends it.
func (l *AttemptLog) Record(pending AttemptRecord, res handshake.Result) AttemptRecord {
	item := pending
	item.AttemptID = strings.TrimSpace(res.AttemptID)
	item.Duration = res.Duration
	item.Reached = res.Reached
	item.Failure = res.Failure
	item.Succeeded = res.Succeeded
	if res.Err != nil {
		item.LastError = strings.TrimSpace(res.Err.Error())
	}
	l.items = append(l.items, item)
	return item
}

// Get returns the most recent record with attemptID.
func (l *AttemptLog) Get(attemptID string) (AttemptRecord, bool) {
	key := strings.TrimSpace(attemptID)
	for i := len(l.items) - 1; i >= 0; i-- {
		if l.items[i].AttemptID == key {
			return l.items[i], true
		}
	}
	return AttemptRecord{}, false
}

func (l *AttemptLog) Len() int { return len(l.items) }

// List returns a copy of the records in attempt order.
func (l *AttemptLog) List() []AttemptRecord {
	return append([]AttemptRecord(nil), l.items...)
}
