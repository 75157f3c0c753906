package booking

import (
	"time"

	"funnel_backend/platform/config"
)

// Slot is one interval of the daily grid offered to visitors. The grid
// always carries every interval of the day; Available tells the client
// which ones can still be booked.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// BuildSlotGrid lays out the candidate slots for one calendar day using the
// configured opening hours and slot duration. The grid is exclusive of the
// closing hour: with 10-17 and one-hour slots the last slot starts at 16:00.
func BuildSlotGrid(date time.Time, cfg config.BookingConfig) []Slot {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), cfg.GetBookingDayStartHour(), 0, 0, 0, date.Location())
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), cfg.GetBookingDayEndHour(), 0, 0, 0, date.Location())
	step := cfg.GetSlotDuration()
	if step <= 0 {
		return nil
	}

	var slots []Slot
	for start := dayStart; !start.Add(step).After(dayEnd); start = start.Add(step) {
		slots = append(slots, Slot{Start: start, End: start.Add(step), Available: true})
	}
	return slots
}

// MarkBusy clears the Available flag on every slot that overlaps any busy
// window. Touching boundaries do not overlap: a slot ending exactly when a
// window begins stays available.
func MarkBusy(slots []Slot, busy []Window) {
	for i := range slots {
		if overlapsAny(slots[i], busy) {
			slots[i].Available = false
		}
	}
}

func overlapsAny(slot Slot, busy []Window) bool {
	for _, w := range busy {
		if slot.Start.Before(w.End) && w.Start.Before(slot.End) {
			return true
		}
	}
	return false
}
