package http

import (
	"net/http"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type offerRequest struct {
	To    string                    `json:"to" binding:"required,userid"`
	Type  string                    `json:"type" binding:"required,mediakind"`
	Offer webrtc.SessionDescription `json:"offer"`
}

type offerResponse struct {
	CallID domain.CallID `json:"callId"`
}

type answerRequest struct {
	CallID string                    `json:"callId" binding:"required"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type answerResponse struct {
	Answer *webrtc.SessionDescription `json:"answer"`
}

type candidateRequest struct {
	CallID    string                  `json:"callId" binding:"required"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type candidatesResponse struct {
	Candidates []webrtc.ICECandidateInit `json:"candidates"`
}

type incomingResponse struct {
	Calls []core.IncomingCall `json:"calls"`
}

// CallHandlers serves the signaling mailbox.
type CallHandlers struct {
	Mailbox *app.Mailbox
	Metrics metrics.Collector
}

func (h *CallHandlers) fail(c *gin.Context, op string, err error) {
	status := statusOf(err)
	ev := log.Debug()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("module", "adapters.http").Str("op", op).Str("user", currentUser(c).String()).Int("status", status).Msg("request failed")
	abortError(c, status, err)
}

func (h *CallHandlers) SendOffer(c *gin.Context) {
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	kind := domain.MediaKind(req.Type)
	id, err := h.Mailbox.CreateCall(currentUser(c), domain.UserID(req.To), kind, req.Offer)
	if err != nil {
		h.fail(c, "offer", err)
		return
	}
	h.Metrics.CallCreated(string(kind))
	c.JSON(http.StatusOK, offerResponse{CallID: id})
}

func (h *CallHandlers) SendAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.Mailbox.Answer(currentUser(c), domain.CallID(req.CallID), req.Answer); err != nil {
		h.fail(c, "answer", err)
		return
	}
	h.Metrics.CallAnswered()
	c.Status(http.StatusOK)
}

func (h *CallHandlers) PollAnswer(c *gin.Context) {
	answer, err := h.Mailbox.PollAnswer(currentUser(c), domain.CallID(c.Param("callId")))
	if err != nil {
		h.fail(c, "poll answer", err)
		return
	}
	c.JSON(http.StatusOK, answerResponse{Answer: answer})
}

func (h *CallHandlers) SendCandidate(c *gin.Context) {
	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.Mailbox.PushCandidate(currentUser(c), domain.CallID(req.CallID), req.Candidate); err != nil {
		h.fail(c, "candidate", err)
		return
	}
	h.Metrics.CandidateRelayed()
	c.Status(http.StatusOK)
}

func (h *CallHandlers) PollCandidates(c *gin.Context) {
	cands, err := h.Mailbox.DrainCandidates(currentUser(c), domain.CallID(c.Param("callId")))
	if err != nil {
		h.fail(c, "poll candidates", err)
		return
	}
	c.JSON(http.StatusOK, candidatesResponse{Candidates: cands})
}

func (h *CallHandlers) EndCall(c *gin.Context) {
	if err := h.Mailbox.End(currentUser(c), domain.CallID(c.Param("callId"))); err != nil {
		h.fail(c, "end", err)
		return
	}
	h.Metrics.CallEnded("hangup")
	c.Status(http.StatusOK)
}

func (h *CallHandlers) Incoming(c *gin.Context) {
	calls := h.Mailbox.Incoming(currentUser(c))
	out := make([]core.IncomingCall, 0, len(calls))
	for _, call := range calls {
		out = append(out, core.IncomingCall{
			CallID: call.ID,
			From:   call.From,
			Kind:   call.Kind,
			Offer:  call.Offer,
		})
	}
	c.JSON(http.StatusOK, incomingResponse{Calls: out})
}
