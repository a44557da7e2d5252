package call

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Signal is one queued signaling item (an offer, answer or ICE candidate)
// waiting in a participant's mailbox.
type Signal struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// PeerMailbox holds the inbound signaling queues for one participant, keyed
// by sender. Offers and answers keep only the latest item per sender; ICE
// candidates accumulate in submission order.
type PeerMailbox struct {
	Offers     map[string]Signal
	Answers    map[string]Signal
	Candidates map[string][]Signal
}

func newPeerMailbox() *PeerMailbox {
	return &PeerMailbox{
		Offers:     make(map[string]Signal),
		Answers:    make(map[string]Signal),
		Candidates: make(map[string][]Signal),
	}
}

// MailboxSnapshot is the result of draining a mailbox. The maps are owned by
// the caller; the registry keeps no reference to them after the drain.
type MailboxSnapshot struct {
	Offers     map[string]Signal
	Answers    map[string]Signal
	Candidates map[string][]Signal
}

// CallSnapshot is a non-destructive view of a call, used by the info path.
type CallSnapshot struct {
	Participants []string
	CreatedAt    time.Time
}

type activeCall struct {
	rideID       string
	createdAt    time.Time
	lastActivity time.Time
	participants map[string]time.Time // userID -> joinedAt
	mailboxes    map[string]*PeerMailbox
}

func (c *activeCall) participantsSorted() []string {
	ids := make([]string, 0, len(c.participants))
	for id := range c.participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ji, jj := c.participants[ids[i]], c.participants[ids[j]]
		if ji.Equal(jj) {
			return ids[i] < ids[j]
		}
		return ji.Before(jj)
	})
	return ids
}

// Registry owns every active call and its mailboxes, keyed by ride ID. All
// state is in process memory; a restart drops every call and clients recover
// by rejoining. Primitives are synchronous and never call out while holding
// the lock, so a mailbox mutation can never interleave with another request.
type Registry struct {
	mu    sync.Mutex
	calls map[string]*activeCall

	// Calls with no join/record/drain activity for idleTTL are evicted by a
	// background sweep, so abandoned calls do not pile up when clients crash
	// without an explicit leave.
	idleTTL       time.Duration
	sweepInterval time.Duration
}

func NewRegistry() *Registry {
	r := &Registry{
		calls:         make(map[string]*activeCall),
		idleTTL:       30 * time.Minute,
		sweepInterval: 5 * time.Minute,
	}
	go r.sweepLoop()
	return r
}

// GetOrCreate returns the call for rideID, creating an empty one stamped with
// now if none exists yet.
func (r *Registry) GetOrCreate(rideID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(rideID, now)
}

func (r *Registry) getOrCreateLocked(rideID string, now time.Time) *activeCall {
	if c, ok := r.calls[rideID]; ok {
		return c
	}
	c := &activeCall{
		rideID:       rideID,
		createdAt:    now,
		lastActivity: now,
		participants: make(map[string]time.Time),
		mailboxes:    make(map[string]*PeerMailbox),
	}
	r.calls[rideID] = c
	return c
}

// AddParticipant adds userID to the call's participant set, creating the call
// and an empty mailbox as needed. Idempotent: a repeated join keeps the
// original join time.
func (r *Registry) AddParticipant(rideID, userID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.getOrCreateLocked(rideID, now)
	if _, ok := c.participants[userID]; !ok {
		c.participants[userID] = now
	}
	if _, ok := c.mailboxes[userID]; !ok {
		c.mailboxes[userID] = newPeerMailbox()
	}
	c.lastActivity = now
}

// EnsureMailbox creates a mailbox for userID without adding them to the
// participant set. Used when a signal is routed to a member who has not
// joined yet, so an offer racing ahead of the join is not lost. Reports
// whether a call for rideID exists.
func (r *Registry) EnsureMailbox(rideID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[rideID]
	if !ok {
		return false
	}
	if _, ok := c.mailboxes[userID]; !ok {
		c.mailboxes[userID] = newPeerMailbox()
	}
	return true
}

// IsParticipant reports whether userID has joined the call for rideID.
func (r *Registry) IsParticipant(rideID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[rideID]
	if !ok {
		return false
	}
	_, ok = c.participants[userID]
	return ok
}

// RemoveParticipant drops userID from the call: their mailbox is deleted and
// every signal they sent is scrubbed from the remaining mailboxes. The call
// itself is deleted once its participant set is empty, lazily created
// mailboxes notwithstanding. Safe to call when the user never joined.
func (r *Registry) RemoveParticipant(rideID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[rideID]
	if !ok {
		return
	}

	delete(c.participants, userID)
	delete(c.mailboxes, userID)
	for _, mb := range c.mailboxes {
		delete(mb.Offers, userID)
		delete(mb.Answers, userID)
		delete(mb.Candidates, userID)
	}

	if len(c.participants) == 0 {
		delete(r.calls, rideID)
	}
}

// RecordOffer stores fromUserID's offer in targetUserID's mailbox, replacing
// any previous offer from the same sender. The target's mailbox is created
// lazily if absent. Returns ErrNotInCall when no call exists for rideID.
func (r *Registry) RecordOffer(rideID, fromUserID, targetUserID string, payload json.RawMessage, now time.Time) error {
	return r.record(rideID, now, func(mb *PeerMailbox) {
		mb.Offers[fromUserID] = Signal{Payload: payload, Timestamp: now}
	}, targetUserID)
}

// RecordAnswer stores fromUserID's answer in targetUserID's mailbox with the
// same overwrite semantics as RecordOffer.
func (r *Registry) RecordAnswer(rideID, fromUserID, targetUserID string, payload json.RawMessage, now time.Time) error {
	return r.record(rideID, now, func(mb *PeerMailbox) {
		mb.Answers[fromUserID] = Signal{Payload: payload, Timestamp: now}
	}, targetUserID)
}

// RecordCandidate appends an ICE candidate from fromUserID to targetUserID's
// mailbox. Candidates are never overwritten: all of them must reach the
// target, in the order the sender submitted them.
func (r *Registry) RecordCandidate(rideID, fromUserID, targetUserID string, payload json.RawMessage, now time.Time) error {
	return r.record(rideID, now, func(mb *PeerMailbox) {
		mb.Candidates[fromUserID] = append(mb.Candidates[fromUserID], Signal{Payload: payload, Timestamp: now})
	}, targetUserID)
}

func (r *Registry) record(rideID string, now time.Time, write func(*PeerMailbox), targetUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[rideID]
	if !ok {
		return ErrNotInCall
	}
	mb, ok := c.mailboxes[targetUserID]
	if !ok {
		mb = newPeerMailbox()
		c.mailboxes[targetUserID] = mb
	}
	write(mb)
	c.lastActivity = now
	return nil
}

// Drain atomically snapshots and clears userID's mailbox. The destructive
// read is the delivery contract: once returned, the caller owns the signals
// and the registry forgets them. Returns ok=false when no call exists or
// userID is not a participant.
func (r *Registry) Drain(rideID, userID string, now time.Time) (MailboxSnapshot, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[rideID]
	if !ok {
		return MailboxSnapshot{}, nil, false
	}
	if _, ok := c.participants[userID]; !ok {
		return MailboxSnapshot{}, nil, false
	}

	mb, ok := c.mailboxes[userID]
	if !ok {
		mb = newPeerMailbox()
		c.mailboxes[userID] = mb
	}

	snap := MailboxSnapshot{
		Offers:     mb.Offers,
		Answers:    mb.Answers,
		Candidates: mb.Candidates,
	}
	mb.Offers = make(map[string]Signal)
	mb.Answers = make(map[string]Signal)
	mb.Candidates = make(map[string][]Signal)

	c.lastActivity = now
	return snap, c.participantsSorted(), true
}

// Participants returns the sorted participant list for rideID, reporting
// whether a call exists.
func (r *Registry) Participants(rideID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[rideID]
	if !ok {
		return nil, false
	}
	return c.participantsSorted(), true
}

// Snapshot returns a non-destructive view of the call for rideID.
func (r *Registry) Snapshot(rideID string) (CallSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[rideID]
	if !ok {
		return CallSnapshot{}, false
	}
	return CallSnapshot{
		Participants: c.participantsSorted(),
		CreatedAt:    c.createdAt,
	}, true
}

func (r *Registry) sweepLoop() {
	if r.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(r.sweepInterval)
	for range ticker.C {
		r.sweepIdle(time.Now())
	}
}

func (r *Registry) sweepIdle(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for rideID, c := range r.calls {
		if r.idleTTL > 0 && now.Sub(c.lastActivity) > r.idleTTL {
			delete(r.calls, rideID)
		}
	}
}
