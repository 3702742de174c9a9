package models

import (
	"time"

	"github.com/dhtms/tms-api/internal/schedule"
)

// Hall represents a bookable room.
type Hall struct {
	ID           string             `db:"id" json:"id"`
	Name         string             `db:"name" json:"name"`
	Location     string             `db:"location" json:"location"`
	Capacity     int                `db:"capacity" json:"capacity"`
	Availability []AvailabilitySlot `db:"-" json:"availability,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

// AvailabilitySlot is one opening-hours entry for a hall. Exactly one
// of DayOfWeek (0=Sunday..6=Saturday, recurring weekly) or
// SpecificDate (one-off) is set.
type AvailabilitySlot struct {
	ID           string         `db:"id" json:"id"`
	HallID       string         `db:"hall_id" json:"hall_id"`
	DayOfWeek    *int           `db:"day_of_week" json:"day_of_week,omitempty"`
	SpecificDate *time.Time     `db:"specific_date" json:"specific_date,omitempty"`
	StartTime    schedule.Clock `db:"start_min" json:"start_time"`
	EndTime      schedule.Clock `db:"end_min" json:"end_time"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Window returns the slot's time window.
func (s AvailabilitySlot) Window() schedule.Window {
	return schedule.Window{Start: s.StartTime, End: s.EndTime}
}

// MatchesDate reports whether the slot applies to the given UTC
// calendar day.
func (s AvailabilitySlot) MatchesDate(day time.Time) bool {
	if s.SpecificDate != nil {
		return schedule.Day(*s.SpecificDate).Equal(schedule.Day(day))
	}
	if s.DayOfWeek != nil {
		return *s.DayOfWeek == int(schedule.Day(day).Weekday())
	}
	return false
}

// HallAvailabilityResult explains why a hall is or is not usable for a
// requested window.
type HallAvailabilityResult struct {
	IsAvailable bool   `json:"isAvailable"`
	Type        string `json:"type,omitempty"`
	Reason      string `json:"reason,omitempty"`
	BookedBy    string `json:"bookedBy,omitempty"`
}

// Conflict reason types reported by the availability resolver.
const (
	ConflictTypeBlock    = "block"
	ConflictTypeTraining = "training"
	ConflictTypeClosed   = "closed"
)
