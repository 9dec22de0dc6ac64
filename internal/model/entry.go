package model

import "time"

// EntryType records the provenance of an entry, not its mutability.
type EntryType string

const (
	EntryTypeAuto   EntryType = "auto"
	EntryTypeManual EntryType = "manual"
)

// EventType classifies what occurred.
type EventType string

const (
	EventAssignmentStart  EventType = "assignment_start"
	EventAssignmentEnd    EventType = "assignment_end"
	EventLocationChange   EventType = "location_change"
	EventPrincipalPickup  EventType = "principal_pickup"
	EventPrincipalDropoff EventType = "principal_dropoff"
	EventRouteDeviation   EventType = "route_deviation"
	EventCommunication    EventType = "communication"
	EventManualNote       EventType = "manual_note"
	EventIncident         EventType = "incident"
	EventOther            EventType = "other"
)

// Metadata is the fixed provenance schema attached to an entry, stored as a
// JSON column. Fields are zero-valued when not applicable to the event type.
type Metadata struct {
	AutoGenerated   bool    `json:"autoGenerated,omitempty"`
	TriggerStatus   string  `json:"triggerStatus,omitempty"`
	DistanceMeters  float64 `json:"distanceMeters,omitempty"`
	DeviationReason string  `json:"deviationReason,omitempty"`
	Note            string  `json:"note,omitempty"`
}

// Entry is one row in an officer's Daily Occurrence Book. Once IsImmutable
// is set no field may ever change again; the store enforces this.
type Entry struct {
	ID                  string     `gorm:"primaryKey;size:36" json:"id"`
	AssignmentID        *string    `gorm:"index;size:36" json:"assignmentId,omitempty"`
	AssignmentReference *string    `gorm:"size:64" json:"assignmentReference,omitempty"`
	CPOID               string     `gorm:"column:cpo_id;index;not null;size:36" json:"cpoId"`
	EntryType           EntryType  `gorm:"size:16;not null" json:"entryType"`
	EventType           EventType  `gorm:"size:32;not null;index" json:"eventType"`
	Timestamp           time.Time  `gorm:"not null;index" json:"timestamp"`
	Latitude            *float64   `json:"latitude,omitempty"`
	Longitude           *float64   `json:"longitude,omitempty"`
	AccuracyMeters      *float64   `json:"accuracyMeters,omitempty"`
	Description         string     `gorm:"size:1000;not null" json:"description"`
	Metadata            Metadata   `gorm:"serializer:json" json:"metadata"`
	IsImmutable         bool       `gorm:"not null" json:"isImmutable"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	SubmittedAt         *time.Time `json:"submittedAt,omitempty"`
}

// SetPosition attaches a GPS fix to the entry.
func (e *Entry) SetPosition(lat, lon, accuracy float64) {
	e.Latitude = &lat
	e.Longitude = &lon
	e.AccuracyMeters = &accuracy
}

// HasPosition reports whether the entry carries a GPS fix.
func (e *Entry) HasPosition() bool {
	return e.Latitude != nil && e.Longitude != nil
}
