package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthlink/mediavault/response"
)

// Health answers a trivial liveness probe.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.Write(gin.H{"status": "ok"}))
}
