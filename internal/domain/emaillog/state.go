package emaillog

import (
	"database/sql"
	"time"
)

// statusRank orders the engagement lattice sent < delivered < opened < clicked.
// Bounced and complained are deliberately absent: they are overrides, not
// lattice positions, and an override is never advanced past by a stale
// engagement event.
var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusOpened:    2,
	StatusClicked:   3,
}

// ApplyEvent drives the log state machine for one lifecycle occurrence.
// Providers deliver events out of order over unreliable transports, so the
// transition is idempotent and monotonic: applying the same event twice, or
// events out of temporal order, converges to the same final state.
func ApplyEvent(l *EmailLog, evtType EventType, occurredAt time.Time, bounceType string) {
	switch evtType {
	case EventDelivery:
		if !l.DeliveredAt.Valid {
			l.DeliveredAt = sql.NullTime{Time: occurredAt, Valid: true}
		}
		advance(l, StatusDelivered)
	case EventOpen:
		if !l.OpenedAt.Valid {
			l.OpenedAt = sql.NullTime{Time: occurredAt, Valid: true}
		}
		advance(l, StatusOpened)
	case EventClick:
		if !l.ClickedAt.Valid {
			l.ClickedAt = sql.NullTime{Time: occurredAt, Valid: true}
		}
		advance(l, StatusClicked)
	case EventBounce:
		l.Status = StatusBounced
		if bounceType != "" {
			l.BounceType = sql.NullString{String: bounceType, Valid: true}
		}
	case EventComplaint:
		l.Status = StatusComplained
	}
}

// advance moves the displayed status forward along the lattice. A log that
// already reached a later engagement state, or that was overridden by a
// bounce/complaint, keeps its current status; the event timestamp has still
// been recorded by the caller.
func advance(l *EmailLog, target Status) {
	current, ok := statusRank[l.Status]
	if !ok {
		return
	}
	if current < statusRank[target] {
		l.Status = target
	}
}
