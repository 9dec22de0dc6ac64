package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dob-backend/internal/geo"
	"dob-backend/internal/logbook"
	"dob-backend/internal/model"
	"dob-backend/internal/mw"
	"dob-backend/internal/store"
)

type createEntryRequest struct {
	AssignmentID        string    `json:"assignment_id"`
	AssignmentReference string    `json:"assignment_reference"`
	EventType           string    `json:"event_type" binding:"required"`
	Timestamp           time.Time `json:"timestamp" binding:"required"`
	Latitude            *float64  `json:"latitude"`
	Longitude           *float64  `json:"longitude"`
	AccuracyMeters      *float64  `json:"accuracy_meters"`
	Description         string    `json:"description" binding:"required"`
	Note                string    `json:"note"`
}

// PostEntry handles manual entry submission. Validation failures come back
// as 400 with an inline message; persistence failures as 500, retryable by
// the operator.
func (h *Handler) PostEntry(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := logbook.Input{
		AssignmentID:        req.AssignmentID,
		AssignmentReference: req.AssignmentReference,
		CPOID:               mw.OfficerID(c),
		EventType:           model.EventType(req.EventType),
		Timestamp:           req.Timestamp,
		Description:         req.Description,
		Metadata:            model.Metadata{Note: req.Note},
	}
	if req.Latitude != nil && req.Longitude != nil {
		pos := geo.Position{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if req.AccuracyMeters != nil {
			pos.AccuracyMeters = *req.AccuracyMeters
		}
		in.Position = &pos
	}

	entry, err := h.logbook.CreateManualEntry(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, logbook.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store entry, please retry"})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ListEntries handles filtered occurrence-book queries, newest first.
func (h *Handler) ListEntries(c *gin.Context) {
	filter := store.Filter{
		AssignmentID: c.Query("assignment_id"),
		EntryType:    c.Query("entry_type"),
		EventType:    c.Query("event_type"),
		SearchQuery:  c.Query("q"),
	}

	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'start' timestamp, use RFC3339"})
			return
		}
		filter.Start = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'end' timestamp, use RFC3339"})
			return
		}
		filter.End = &t
	}

	entries, err := h.store.Query(c.Request.Context(), mw.OfficerID(c), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query entries"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetEntry returns a single entry, verifying ownership.
func (h *Handler) GetEntry(c *gin.Context) {
	entry, err := h.store.Get(c.Request.Context(), c.Param("id"), mw.OfficerID(c))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		case errors.Is(err, store.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "entry belongs to another officer"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entry"})
		}
		return
	}
	c.JSON(http.StatusOK, entry)
}
