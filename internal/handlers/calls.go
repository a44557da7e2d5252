package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bruinsplit/bruinsplit/internal/call"

	"github.com/gin-gonic/gin"
)

type joinCallResponse struct {
	Participants []string `json:"participants"`
	AllMembers   []string `json:"allMembers"`
}

type callStatusResponse struct {
	Active       bool                         `json:"active"`
	Participants []string                     `json:"participants,omitempty"`
	Offers       map[string]call.Signal       `json:"offers,omitempty"`
	Answers      map[string]call.Signal       `json:"answers,omitempty"`
	Candidates   map[string][]call.Signal     `json:"iceCandidates,omitempty"`
}

type callInfoResponse struct {
	Active       bool       `json:"active"`
	Participants []string   `json:"participants"`
	AllMembers   []string   `json:"allMembers,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

type sendOfferRequest struct {
	Offer json.RawMessage `json:"offer" binding:"required"`
}

type sendAnswerRequest struct {
	Answer json.RawMessage `json:"answer" binding:"required"`
}

type sendCandidateRequest struct {
	Candidate json.RawMessage `json:"candidate" binding:"required"`
}

func (h *Handlers) JoinCall(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	res, err := h.signaling.Join(c.Request.Context(), rideID, uid)
	if err != nil {
		h.writeSignalingError(c, err)
		return
	}

	h.hub.Broadcast(rideID, rideEvent{
		Type:         "call-started",
		RideID:       rideID,
		Participants: res.Participants,
	})

	c.JSON(http.StatusOK, joinCallResponse{
		Participants: res.Participants,
		AllMembers:   res.AllMembers,
	})
}

func (h *Handlers) SendOffer(c *gin.Context) {
	var req sendOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil || isJSONNull(req.Offer) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offer is required"})
		return
	}
	h.relaySignal(c, req.Offer, h.signaling.SendOffer)
}

func (h *Handlers) SendAnswer(c *gin.Context) {
	var req sendAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || isJSONNull(req.Answer) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "answer is required"})
		return
	}
	h.relaySignal(c, req.Answer, h.signaling.SendAnswer)
}

func (h *Handlers) SendIceCandidate(c *gin.Context) {
	var req sendCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || isJSONNull(req.Candidate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "candidate is required"})
		return
	}
	h.relaySignal(c, req.Candidate, h.signaling.SendCandidate)
}

func (h *Handlers) relaySignal(
	c *gin.Context,
	payload json.RawMessage,
	send func(ctx context.Context, rideID, fromUserID, targetUserID string, payload json.RawMessage) error,
) {
	rideID := c.Param("ride_id")
	targetID := c.Param("target_id")
	uid := currentUserID(c)

	if err := send(c.Request.Context(), rideID, uid, targetID, payload); err != nil {
		h.writeSignalingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CallStatus is the destructive signaling poll. It never fails: polling a
// ride with no active call is how the frontend waits for one to start.
func (h *Handlers) CallStatus(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	st := h.signaling.Status(rideID, uid)
	if !st.Active {
		c.JSON(http.StatusOK, callStatusResponse{Active: false})
		return
	}
	c.JSON(http.StatusOK, callStatusResponse{
		Active:       true,
		Participants: st.Participants,
		Offers:       st.Offers,
		Answers:      st.Answers,
		Candidates:   st.Candidates,
	})
}

// CallInfo is the non-destructive check used by UI badges; it must never
// consume signals meant for the live peer connection.
func (h *Handlers) CallInfo(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	info, err := h.signaling.Info(c.Request.Context(), rideID, uid)
	if err != nil {
		h.writeSignalingError(c, err)
		return
	}

	resp := callInfoResponse{
		Active:       info.Active,
		Participants: info.Participants,
		AllMembers:   info.AllMembers,
	}
	if info.Active {
		created := info.CreatedAt
		resp.CreatedAt = &created
	}
	if resp.Participants == nil {
		resp.Participants = []string{}
	}
	c.JSON(http.StatusOK, resp)
}

// LeaveCall never fails, even when the caller was not in the call.
func (h *Handlers) LeaveCall(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	h.signaling.Leave(rideID, uid)

	if participants, ok := h.signaling.Participants(rideID); ok {
		h.hub.Broadcast(rideID, rideEvent{
			Type:         "participant-left",
			RideID:       rideID,
			UserID:       uid,
			Participants: participants,
		})
	} else {
		h.hub.Broadcast(rideID, rideEvent{Type: "call-ended", RideID: rideID})
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// writeSignalingError maps the signaling error taxonomy onto HTTP statuses.
// NotInCall shares 404 with RideNotFound: both mean "no active session for
// you here."
func (h *Handlers) writeSignalingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, call.ErrRideNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
	case errors.Is(err, call.ErrNotInCall):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active call for this ride"})
	case errors.Is(err, call.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a confirmed ride member"})
	default:
		h.logger.Error("signaling operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
