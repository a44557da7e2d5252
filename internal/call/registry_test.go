package call

import (
	"encoding/json"
	"testing"
	"time"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestOfferOverwriteAndCandidateAppend(t *testing.T) {
	r := NewRegistry()
	base := time.Unix(1_700_000_000, 0)

	r.AddParticipant("r1", "alice", base)
	r.AddParticipant("r1", "bob", base.Add(time.Second))

	if err := r.RecordOffer("r1", "alice", "bob", raw(`{"sdp":"old"}`), base.Add(2*time.Second)); err != nil {
		t.Fatalf("first offer failed: %v", err)
	}
	if err := r.RecordOffer("r1", "alice", "bob", raw(`{"sdp":"new"}`), base.Add(3*time.Second)); err != nil {
		t.Fatalf("second offer failed: %v", err)
	}
	if err := r.RecordCandidate("r1", "alice", "bob", raw(`"c1"`), base.Add(4*time.Second)); err != nil {
		t.Fatalf("first candidate failed: %v", err)
	}
	if err := r.RecordCandidate("r1", "alice", "bob", raw(`"c2"`), base.Add(5*time.Second)); err != nil {
		t.Fatalf("second candidate failed: %v", err)
	}

	snap, _, ok := r.Drain("r1", "bob", base.Add(6*time.Second))
	if !ok {
		t.Fatalf("drain for bob should succeed")
	}

	offer, exists := snap.Offers["alice"]
	if !exists {
		t.Fatalf("expected an offer from alice")
	}
	if string(offer.Payload) != `{"sdp":"new"}` {
		t.Fatalf("expected latest offer to win, got %s", offer.Payload)
	}

	cands := snap.Candidates["alice"]
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if string(cands[0].Payload) != `"c1"` || string(cands[1].Payload) != `"c2"` {
		t.Fatalf("candidates out of order: %s, %s", cands[0].Payload, cands[1].Payload)
	}
}

func TestDrainClearsMailbox(t *testing.T) {
	r := NewRegistry()
	base := time.Unix(1_700_100_000, 0)

	r.AddParticipant("r1", "alice", base)
	r.AddParticipant("r1", "bob", base)
	if err := r.RecordOffer("r1", "alice", "bob", raw(`{"sdp":"x"}`), base.Add(time.Second)); err != nil {
		t.Fatalf("record offer failed: %v", err)
	}

	first, participants, ok := r.Drain("r1", "bob", base.Add(2*time.Second))
	if !ok {
		t.Fatalf("first drain should succeed")
	}
	if len(first.Offers) != 1 {
		t.Fatalf("expected 1 offer on first drain, got %d", len(first.Offers))
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %v", participants)
	}

	second, _, ok := r.Drain("r1", "bob", base.Add(3*time.Second))
	if !ok {
		t.Fatalf("second drain should still succeed, bob is a participant")
	}
	if len(second.Offers) != 0 || len(second.Answers) != 0 || len(second.Candidates) != 0 {
		t.Fatalf("second drain should be empty, got %+v", second)
	}
}

func TestDrainRequiresParticipation(t *testing.T) {
	r := NewRegistry()
	base := time.Unix(1_700_200_000, 0)

	if _, _, ok := r.Drain("r1", "alice", base); ok {
		t.Fatalf("drain without a call should not succeed")
	}

	r.AddParticipant("r1", "alice", base)
	if _, _, ok := r.Drain("r1", "bob", base.Add(time.Second)); ok {
		t.Fatalf("drain for a non-participant should not succeed")
	}
}

func TestRemoveParticipantScrubsSender(t *testing.T) {
	r := NewRegistry()
	base := time.Unix(1_700_300_000, 0)

	r.AddParticipant("r1", "alice", base)
	r.AddParticipant("r1", "bob", base)
	r.AddParticipant("r1", "carol", base)

	if err := r.RecordOffer("r1", "bob", "alice", raw(`{"sdp":"b"}`), base.Add(time.Second)); err != nil {
		t.Fatalf("offer failed: %v", err)
	}
	if err := r.RecordCandidate("r1", "bob", "carol", raw(`"bc"`), base.Add(time.Second)); err != nil {
		t.Fatalf("candidate failed: %v", err)
	}

	r.RemoveParticipant("r1", "bob")

	snapA, _, _ := r.Drain("r1", "alice", base.Add(2*time.Second))
	if _, exists := snapA.Offers["bob"]; exists {
		t.Fatalf("alice's mailbox should not retain bob's offer after leave")
	}
	snapC, _, _ := r.Drain("r1", "carol", base.Add(2*time.Second))
	if _, exists := snapC.Candidates["bob"]; exists {
		t.Fatalf("carol's mailbox should not retain bob's candidates after leave")
	}

	participants, ok := r.Participants("r1")
	if !ok {
		t.Fatalf("call should still exist with two participants")
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants after leave, got %v", participants)
	}
}

func TestCallDeletedWhenLastParticipantLeaves(t *testing.T) {
	r := NewRegistry()
	base := time.Unix(1_700_400_000, 0)

	r.AddParticipant("r1", "alice", base)
	// A lazily created mailbox for a member who never joined must not keep
	// the call alive.
	if ok := r.EnsureMailbox("r1", "bob"); !ok {
		t.Fatalf("ensure mailbox should succeed while the call exists")
	}

	r.RemoveParticipant("r1", "alice")

	if _, ok := r.Participants("r1"); ok {
		t.Fatalf("call should be deleted once the participant set is empty")
	}
	if _, ok := r.Snapshot("r1"); ok {
		t.Fatalf("snapshot should report no call after teardown")
	}
}

func TestLazyMailboxDeliversOnFirstDrain(t *testing.T) {
	r := NewRegistry()
	base := time.Unix(1_700_500_000, 0)

	r.AddParticipant("r1", "alice", base)
	// Offer addressed to bob before bob joins: kept in a lazily created
	// mailbox.
	if err := r.RecordOffer("r1", "alice", "bob", raw(`{"sdp":"early"}`), base.Add(time.Second)); err != nil {
		t.Fatalf("offer to not-yet-joined member failed: %v", err)
	}

	r.AddParticipant("r1", "bob", base.Add(2*time.Second))
	snap, _, ok := r.Drain("r1", "bob", base.Add(3*time.Second))
	if !ok {
		t.Fatalf("drain after join should succeed")
	}
	if string(snap.Offers["alice"].Payload) != `{"sdp":"early"}` {
		t.Fatalf("early offer lost, got %+v", snap.Offers)
	}
}

func TestSweepEvictsIdleCalls(t *testing.T) {
	r := NewRegistry()
	r.idleTTL = time.Minute
	base := time.Unix(1_700_600_000, 0)

	r.AddParticipant("stale", "alice", base)
	r.AddParticipant("fresh", "bob", base)
	if err := r.RecordOffer("fresh", "bob", "bob", raw(`{}`), base.Add(2*time.Minute)); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	r.sweepIdle(base.Add(2*time.Minute + time.Second))

	if _, ok := r.Participants("stale"); ok {
		t.Fatalf("idle call should have been evicted")
	}
	if _, ok := r.Participants("fresh"); !ok {
		t.Fatalf("recently active call should survive the sweep")
	}
}
