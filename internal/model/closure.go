package model

import (
	"time"

	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// ShopClosure blocks bookings on a date. When StartMinute and EndMinute are
// both nil the whole day is closed; otherwise [StartMinute, EndMinute) is.
type ShopClosure struct {
	ID          uint64      // shop_closures.id
	ClosureDate time.Time   // shop_closures.closure_date
	StartMinute *slot.Clock // shop_closures.start_time (nullable)
	EndMinute   *slot.Clock // shop_closures.end_time (nullable)
	Reason      string      // shop_closures.reason
}

// Covers reports whether the closure overlaps [start, start+duration).
func (c ShopClosure) Covers(start slot.Clock, duration int) bool {
	if c.StartMinute == nil || c.EndMinute == nil {
		return true
	}
	return slot.Overlaps(*c.StartMinute, int(*c.EndMinute-*c.StartMinute), start, duration)
}
