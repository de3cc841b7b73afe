package main

// waitingEntry is the single pending matchmaking request.
type waitingEntry struct {
	client  *client
	userID  string
	name    string
	variant string
}

type matchResult int

const (
	matchQueued matchResult = iota
	matchPaired
	matchSelf
)

// matchQueue holds at most one waiting entry; the next distinct arrival
// consumes it.
type matchQueue struct {
	waiting *waitingEntry
}

func newMatchQueue() *matchQueue {
	return &matchQueue{}
}

// offer pairs the caller with the waiting entry when one is present,
// returning the consumed entry. With no entry pending the caller becomes
// the waiting entry. A caller whose userID matches the waiting entry is
// dropped without consuming it and without any reply; clients that race
// themselves get no acknowledgement.
func (q *matchQueue) offer(e *waitingEntry) (*waitingEntry, matchResult) {
	if q.waiting == nil {
		q.waiting = e
		return nil, matchQueued
	}
	if q.waiting.userID == e.userID {
		return nil, matchSelf
	}

	partner := q.waiting
	q.waiting = nil
	return partner, matchPaired
}

// dropClient clears the waiting slot when its connection goes away.
func (q *matchQueue) dropClient(c *client) {
	if q.waiting != nil && q.waiting.client == c {
		q.waiting = nil
	}
}

// pairRoomID synthesizes a deterministic id for a matched pair. Connection
// ids are unique, so the concatenation is collision-free.
func pairRoomID(x, o *client) string {
	return x.id + "#" + o.id
}
