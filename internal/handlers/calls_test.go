package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/bruinsplit/bruinsplit/internal/call"
	"github.com/bruinsplit/bruinsplit/internal/config"

	"github.com/gin-gonic/gin"
)

type rosterOracle struct {
	rides map[string][]string
}

func (o *rosterOracle) VerifyRideMembership(_ context.Context, rideID, userID string) (bool, error) {
	members, ok := o.rides[rideID]
	if !ok {
		return false, call.ErrRideNotFound
	}
	for _, m := range members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func (o *rosterOracle) ConfirmedMembers(_ context.Context, rideID string) ([]string, error) {
	members, ok := o.rides[rideID]
	if !ok {
		return nil, call.ErrRideNotFound
	}
	return members, nil
}

// newCallRouter wires only the signaling routes, with a stub auth middleware
// that trusts the X-Test-User header.
func newCallRouter(rides map[string][]string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	signaling := call.NewService(call.NewRegistry(), &rosterOracle{rides: rides})
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := New(nil, &config.Config{JWTSecret: "test"}, signaling, nil, nil, logger)

	router := gin.New()
	auth := router.Group("/api", func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Test-User"))
		c.Next()
	})
	auth.POST("/calls/:ride_id/join", h.JoinCall)
	auth.POST("/calls/:ride_id/offer/:target_id", h.SendOffer)
	auth.POST("/calls/:ride_id/answer/:target_id", h.SendAnswer)
	auth.POST("/calls/:ride_id/ice-candidate/:target_id", h.SendIceCandidate)
	auth.GET("/calls/:ride_id/status", h.CallStatus)
	auth.GET("/calls/:ride_id/info", h.CallInfo)
	auth.DELETE("/calls/:ride_id/leave", h.LeaveCall)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Test-User", user)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJoinStatusCodes(t *testing.T) {
	router := newCallRouter(map[string][]string{"r1": {"alice", "bob"}})

	if w := doRequest(t, router, http.MethodPost, "/api/calls/r1/join", "mallory", ""); w.Code != http.StatusForbidden {
		t.Fatalf("non-member join: expected 403, got %d (%s)", w.Code, w.Body.String())
	}
	if w := doRequest(t, router, http.MethodPost, "/api/calls/ghost/join", "alice", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown ride join: expected 404, got %d", w.Code)
	}

	w := doRequest(t, router, http.MethodPost, "/api/calls/r1/join", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("member join: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp joinCallResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode join response: %v", err)
	}
	if len(resp.Participants) != 1 || resp.Participants[0] != "alice" {
		t.Fatalf("unexpected participants: %v", resp.Participants)
	}
	if len(resp.AllMembers) != 2 {
		t.Fatalf("expected full roster, got %v", resp.AllMembers)
	}
}

func TestOfferStatusCodes(t *testing.T) {
	router := newCallRouter(map[string][]string{"r1": {"alice", "bob"}})

	// Sender has not joined.
	w := doRequest(t, router, http.MethodPost, "/api/calls/r1/offer/bob", "alice", `{"offer":{"sdp":"x"}}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("offer before join: expected 404, got %d", w.Code)
	}

	if w := doRequest(t, router, http.MethodPost, "/api/calls/r1/join", "alice", ""); w.Code != http.StatusOK {
		t.Fatalf("join failed: %d", w.Code)
	}

	// Missing payload.
	w = doRequest(t, router, http.MethodPost, "/api/calls/r1/offer/bob", "alice", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing offer: expected 400, got %d", w.Code)
	}
	w = doRequest(t, router, http.MethodPost, "/api/calls/r1/offer/bob", "alice", `{"offer":null}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("null offer: expected 400, got %d", w.Code)
	}

	// Ineligible target.
	w = doRequest(t, router, http.MethodPost, "/api/calls/r1/offer/mallory", "alice", `{"offer":{"sdp":"x"}}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("offer to non-member: expected 403, got %d", w.Code)
	}

	w = doRequest(t, router, http.MethodPost, "/api/calls/r1/offer/bob", "alice", `{"offer":{"sdp":"x"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("valid offer: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Fatalf("expected success body, got %s", w.Body.String())
	}
}

func TestStatusDrainOverHTTP(t *testing.T) {
	router := newCallRouter(map[string][]string{"r1": {"alice", "bob"}})

	doRequest(t, router, http.MethodPost, "/api/calls/r1/join", "alice", "")
	doRequest(t, router, http.MethodPost, "/api/calls/r1/join", "bob", "")
	doRequest(t, router, http.MethodPost, "/api/calls/r1/offer/bob", "alice", `{"offer":{"sdp":"x"}}`)
	doRequest(t, router, http.MethodPost, "/api/calls/r1/ice-candidate/bob", "alice", `{"candidate":"c1"}`)
	doRequest(t, router, http.MethodPost, "/api/calls/r1/ice-candidate/bob", "alice", `{"candidate":"c2"}`)

	w := doRequest(t, router, http.MethodGet, "/api/calls/r1/status", "bob", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", w.Code)
	}
	var st callStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Active {
		t.Fatalf("expected active call")
	}
	if string(st.Offers["alice"].Payload) != `{"sdp":"x"}` {
		t.Fatalf("expected alice's offer, got %+v", st.Offers)
	}
	cands := st.Candidates["alice"]
	if len(cands) != 2 || string(cands[0].Payload) != `"c1"` || string(cands[1].Payload) != `"c2"` {
		t.Fatalf("candidates wrong: %+v", cands)
	}

	// Second poll is empty but still active.
	w = doRequest(t, router, http.MethodGet, "/api/calls/r1/status", "bob", "")
	var again callStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode second status: %v", err)
	}
	if !again.Active {
		t.Fatalf("still a participant, should be active")
	}
	if len(again.Offers) != 0 || len(again.Candidates) != 0 {
		t.Fatalf("second poll should be drained, got %+v", again)
	}
}

func TestStatusNeverFails(t *testing.T) {
	router := newCallRouter(map[string][]string{"r1": {"alice"}})

	w := doRequest(t, router, http.MethodGet, "/api/calls/r1/status", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status without a call: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"active":false`) {
		t.Fatalf("expected inactive, got %s", w.Body.String())
	}

	// Even for an unknown ride: polling is never a fault.
	w = doRequest(t, router, http.MethodGet, "/api/calls/ghost/status", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status on unknown ride: expected 200, got %d", w.Code)
	}
}

func TestInfoAndLeave(t *testing.T) {
	router := newCallRouter(map[string][]string{"r1": {"alice", "bob"}})

	w := doRequest(t, router, http.MethodGet, "/api/calls/r1/info", "mallory", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("info for non-member: expected 403, got %d", w.Code)
	}

	doRequest(t, router, http.MethodPost, "/api/calls/r1/join", "alice", "")

	w = doRequest(t, router, http.MethodGet, "/api/calls/r1/info", "bob", "")
	if w.Code != http.StatusOK {
		t.Fatalf("info: expected 200, got %d", w.Code)
	}
	var info callInfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if !info.Active || info.CreatedAt == nil {
		t.Fatalf("expected active call with creation time, got %+v", info)
	}

	// Info must not drain: alice's pending signals survive a bob info call.
	doRequest(t, router, http.MethodPost, "/api/calls/r1/join", "bob", "")
	doRequest(t, router, http.MethodPost, "/api/calls/r1/offer/bob", "alice", `{"offer":{"sdp":"x"}}`)
	doRequest(t, router, http.MethodGet, "/api/calls/r1/info", "bob", "")
	w = doRequest(t, router, http.MethodGet, "/api/calls/r1/status", "bob", "")
	var st callStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(st.Offers) != 1 {
		t.Fatalf("info should not have consumed the offer, got %+v", st.Offers)
	}

	// Leave always succeeds, joined or not.
	if w := doRequest(t, router, http.MethodDelete, "/api/calls/r1/leave", "bob", ""); w.Code != http.StatusOK {
		t.Fatalf("leave: expected 200, got %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodDelete, "/api/calls/r1/leave", "bob", ""); w.Code != http.StatusOK {
		t.Fatalf("repeat leave: expected 200, got %d", w.Code)
	}
	if w := doRequest(t, router, http.MethodDelete, "/api/calls/ghost/leave", "bob", ""); w.Code != http.StatusOK {
		t.Fatalf("leave on unknown ride: expected 200, got %d", w.Code)
	}

	doRequest(t, router, http.MethodDelete, "/api/calls/r1/leave", "alice", "")
	w = doRequest(t, router, http.MethodGet, "/api/calls/r1/info", "bob", "")
	var gone callInfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &gone); err != nil {
		t.Fatalf("decode info after teardown: %v", err)
	}
	if gone.Active {
		t.Fatalf("call should be gone after the last leave")
	}
}
