package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/gin-gonic/gin"
)

var errRateLimited = errors.New("rate limit exceeded")

type errorResponse struct {
	Error string `json:"error"`
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

// statusOf maps mailbox errors onto the signaling status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, app.ErrCallNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, app.ErrAlreadyAnswered):
		return http.StatusConflict
	case errors.Is(err, app.ErrCallEnded):
		return http.StatusGone
	case errors.Is(err, app.ErrSelfCall),
		errors.Is(err, app.ErrEmptyOffer),
		errors.Is(err, domain.ErrUnknownMediaKind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
