package controller

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthlink/mediavault/apperr"
	"github.com/hearthlink/mediavault/response"
)

// ErrParseRequest is returned when a request body fails to bind.
var ErrParseRequest = apperr.New(apperr.InvalidInput, "failed to parse request")

// writeError maps err to the right HTTP status and response body, logging
// the underlying cause for anything that isn't a client mistake.
func writeError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		slog.Error("controller: unclassified error", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{Msg: "internal error"})
		return
	}

	if appErr.Kind == apperr.Internal || appErr.Kind == apperr.Dependency {
		slog.Error("controller: "+appErr.Msg, "err", appErr.Err)
	}

	c.AbortWithStatusJSON(appErr.Kind.Status(), response.Response{Msg: appErr.Msg})
}
