package models

import (
	"time"

	"github.com/dhtms/tms-api/internal/schedule"
)

// DefaultBlockReason is used when an admin block carries no reason.
const DefaultBlockReason = "Admin Block"

// HallBlock is an administrative exclusion of a hall for a date and
// time window. Blocks have no status dimension: they always occupy.
type HallBlock struct {
	ID        string         `db:"id" json:"id"`
	HallID    string         `db:"hall_id" json:"hall_id"`
	Date      time.Time      `db:"date" json:"date"`
	StartTime schedule.Clock `db:"start_min" json:"start_time"`
	EndTime   schedule.Clock `db:"end_min" json:"end_time"`
	Reason    string         `db:"reason" json:"reason"`
	CreatedBy string         `db:"created_by" json:"created_by"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Window returns the block's time window.
func (b HallBlock) Window() schedule.Window {
	return schedule.Window{Start: b.StartTime, End: b.EndTime}
}
