package call

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrRideNotFound means the referenced ride does not exist in the
	// persistence layer. Implementations of MembershipOracle return it from
	// both oracle methods.
	ErrRideNotFound = errors.New("ride not found")
	// ErrForbidden means the caller or the signal target is not a confirmed
	// member of the ride.
	ErrForbidden = errors.New("not a confirmed ride member")
	// ErrNotInCall means the caller tries to signal without having joined the
	// ride's call, or no call is active for the ride.
	ErrNotInCall = errors.New("not in call")
)

// MembershipOracle answers ride membership questions against the persistence
// layer. The ride owner always counts as a confirmed member.
type MembershipOracle interface {
	VerifyRideMembership(ctx context.Context, rideID, userID string) (bool, error)
	ConfirmedMembers(ctx context.Context, rideID string) ([]string, error)
}

// JoinResult distinguishes who is in the call right now (Participants) from
// who is eligible to join it (AllMembers, the authoritative ride roster).
type JoinResult struct {
	Participants []string
	AllMembers   []string
}

// StatusResult is the destructive poll result consumed by the live WebRTC
// client. The drained collections are gone from the registry once returned.
type StatusResult struct {
	Active       bool
	Participants []string
	Offers       map[string]Signal
	Answers      map[string]Signal
	Candidates   map[string][]Signal
}

// InfoResult is a non-destructive view for UI that wants to show whether a
// call exists without consuming any signaling messages.
type InfoResult struct {
	Active       bool
	Participants []string
	AllMembers   []string
	CreatedAt    time.Time
}

// Service implements the call signaling operations. All membership checks go
// through the oracle before any registry state is touched, so a registry
// mutation never straddles a database round trip.
type Service struct {
	registry *Registry
	oracle   MembershipOracle
	nowFn    func() time.Time
}

func NewService(registry *Registry, oracle MembershipOracle) *Service {
	return &Service{
		registry: registry,
		oracle:   oracle,
		nowFn:    time.Now,
	}
}

func (s *Service) authorize(ctx context.Context, rideID, userID string) error {
	ok, err := s.oracle.VerifyRideMembership(ctx, rideID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// Join puts userID into the ride's call, creating the call on first join.
// Fails with ErrForbidden for non-members and ErrRideNotFound for unknown
// rides, without creating any call state.
func (s *Service) Join(ctx context.Context, rideID, userID string) (JoinResult, error) {
	if err := s.authorize(ctx, rideID, userID); err != nil {
		return JoinResult{}, err
	}
	members, err := s.oracle.ConfirmedMembers(ctx, rideID)
	if err != nil {
		return JoinResult{}, err
	}

	now := s.nowFn()
	s.registry.GetOrCreate(rideID, now)
	s.registry.AddParticipant(rideID, userID, now)

	participants, _ := s.registry.Participants(rideID)
	return JoinResult{Participants: participants, AllMembers: members}, nil
}

// SendOffer routes an SDP offer from fromUserID to targetUserID. The sender
// must already be in the call; the target must be a confirmed ride member but
// need not have joined yet — their mailbox is created lazily so an offer
// racing ahead of a join is kept.
func (s *Service) SendOffer(ctx context.Context, rideID, fromUserID, targetUserID string, payload json.RawMessage) error {
	return s.send(ctx, rideID, fromUserID, targetUserID, payload, s.registry.RecordOffer)
}

// SendAnswer routes an SDP answer with the same preconditions as SendOffer.
func (s *Service) SendAnswer(ctx context.Context, rideID, fromUserID, targetUserID string, payload json.RawMessage) error {
	return s.send(ctx, rideID, fromUserID, targetUserID, payload, s.registry.RecordAnswer)
}

// SendCandidate routes an ICE candidate with the same preconditions as
// SendOffer. Candidates accumulate in submission order on the target side.
func (s *Service) SendCandidate(ctx context.Context, rideID, fromUserID, targetUserID string, payload json.RawMessage) error {
	return s.send(ctx, rideID, fromUserID, targetUserID, payload, s.registry.RecordCandidate)
}

func (s *Service) send(
	ctx context.Context,
	rideID, fromUserID, targetUserID string,
	payload json.RawMessage,
	record func(rideID, fromUserID, targetUserID string, payload json.RawMessage, now time.Time) error,
) error {
	if !s.registry.IsParticipant(rideID, fromUserID) {
		return ErrNotInCall
	}
	// Target authorization hits the database, so it happens before the
	// mailbox write, never in the middle of it.
	if err := s.authorize(ctx, rideID, targetUserID); err != nil {
		return err
	}
	return record(rideID, fromUserID, targetUserID, payload, s.nowFn())
}

// Status is the signaling poll: it drains the caller's mailbox and reports
// the live participant list. Polling a ride with no active call is a normal
// condition, not an error — the result is simply inactive.
func (s *Service) Status(rideID, userID string) StatusResult {
	snap, participants, ok := s.registry.Drain(rideID, userID, s.nowFn())
	if !ok {
		return StatusResult{Active: false}
	}
	return StatusResult{
		Active:       true,
		Participants: participants,
		Offers:       snap.Offers,
		Answers:      snap.Answers,
		Candidates:   snap.Candidates,
	}
}

// Info reports call existence and rosters without draining anything, for UI
// badges that must not swallow signals meant for the live peer connection.
// Unlike Status it requires the caller to be a confirmed ride member.
func (s *Service) Info(ctx context.Context, rideID, userID string) (InfoResult, error) {
	if err := s.authorize(ctx, rideID, userID); err != nil {
		return InfoResult{}, err
	}
	members, err := s.oracle.ConfirmedMembers(ctx, rideID)
	if err != nil {
		return InfoResult{}, err
	}

	snap, ok := s.registry.Snapshot(rideID)
	if !ok {
		return InfoResult{Active: false, AllMembers: members}, nil
	}
	return InfoResult{
		Active:       true,
		Participants: snap.Participants,
		AllMembers:   members,
		CreatedAt:    snap.CreatedAt,
	}, nil
}

// Participants reports the live participant list without touching any
// mailbox, for event fan-out.
func (s *Service) Participants(rideID string) ([]string, bool) {
	return s.registry.Participants(rideID)
}

// Leave removes userID from the ride's call and scrubs their pending signals
// from every other mailbox. A no-op when the user never joined; it never
// fails.
func (s *Service) Leave(rideID, userID string) {
	s.registry.RemoveParticipant(rideID, userID)
}
