// Package sched implements the test scheduler: five priority-ordered
// queues (immediate, fast, normal, slow, user) drained by a single
// scheduler goroutine waiting on a monotonic wake timer.
package sched

import (
	"time"

	"github.com/teranos/vigil/object"
)

// entry is one queued wake-up. Autopass entries belong to notification
// tests waiting out their autopass delay; everything else is a polled run.
type entry struct {
	inst     *object.Instance
	at       time.Time
	autopass bool
}

// queue is a wake-time-ordered list. The immediate queue keeps insertion
// order (immediate entries carry their enqueue time as wake time).
type queue struct {
	id      object.QueueID
	entries []*entry
}

// insert places e keeping the queue sorted by wake time.
func (q *queue) insert(e *entry) {
	pos := len(q.entries)
	for i, cur := range q.entries {
		if e.at.Before(cur.at) {
			pos = i
			break
		}
	}
	q.entries = append(q.entries, nil)
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = e
}

// contains reports whether inst is already queued here.
func (q *queue) contains(inst *object.Instance) bool {
	for _, e := range q.entries {
		if e.inst == inst {
			return true
		}
	}
	return false
}

// remove drops inst from the queue. Returns whether an entry was removed.
func (q *queue) remove(inst *object.Instance) bool {
	for i, e := range q.entries {
		if e.inst == inst {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// popDue removes and returns the head when its wake time has arrived.
func (q *queue) popDue(now time.Time) *entry {
	if len(q.entries) == 0 {
		return nil
	}
	head := q.entries[0]
	if head.at.After(now) {
		return nil
	}
	q.entries = q.entries[1:]
	return head
}

// nextTime returns the head's wake time; ok is false when empty.
func (q *queue) nextTime() (time.Time, bool) {
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].at, true
}

// queueForPeriod buckets a polled test by its period. The built-in
// periods map onto the fast, normal and slow queues; custom periods go to
// the user queue.
func queueForPeriod(period time.Duration) object.QueueID {
	switch period {
	case object.PeriodFast:
		return object.QueueFast
	case object.PeriodNormal:
		return object.QueueNormal
	case object.PeriodSlow:
		return object.QueueSlow
	default:
		return object.QueueUser
	}
}
