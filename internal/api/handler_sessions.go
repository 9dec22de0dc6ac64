package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dob-backend/internal/mw"
)

// StartSession begins observing the requesting officer's assignments. It is
// idempotent, so the DOB screen can call it on every launch.
func (h *Handler) StartSession(c *gin.Context) {
	if err := h.observer.Start(mw.OfficerID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// StopSession tears down the officer's observation session, cancelling the
// geofence timer and the assignment subscription.
func (h *Handler) StopSession(c *gin.Context) {
	h.observer.Stop(mw.OfficerID(c))
	c.Status(http.StatusNoContent)
}
