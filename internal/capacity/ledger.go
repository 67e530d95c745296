// Package capacity computes device occupancy for one date from the bookings
// of that date. A Ledger is built once from a single range query and then
// answers any number of instant or range questions in memory.
package capacity

import (
	"sort"

	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

const (
	PS5Units       = 3
	PlayersPerPS5  = 4
	MaxPS5Players  = 10 // aggregate cap across all units
	DrivingPlayers = 1
)

// Entry is one occupied device over one range.
type Entry struct {
	BookingID uint64
	Start     slot.Clock
	Duration  int
	Device    model.DeviceType
	Unit      int // 0 for the simulator
	Players   int
}

func (e Entry) overlaps(start slot.Clock, duration int) bool {
	return slot.Overlaps(e.Start, e.Duration, start, duration)
}

// Occupancy summarises device usage at an instant or across a range.
type Occupancy struct {
	OccupiedPS5      []int `json:"booked_ps5_units"`
	AvailablePS5     []int `json:"available_ps5"`
	DrivingBooked    bool  `json:"driving_booked"`
	AvailableDriving bool  `json:"available_driving"`
	TotalPS5Players  int   `json:"total_ps5_players"`
	Booked           bool  `json:"any_booked"`
}

// RemainingPS5Players is how many more PS5 players fit under the cap.
func (o Occupancy) RemainingPS5Players() int {
	if r := MaxPS5Players - o.TotalPS5Players; r > 0 {
		return r
	}
	return 0
}

// UnitFree reports whether the given PS5 unit is free.
func (o Occupancy) UnitFree(unit int) bool {
	for _, u := range o.OccupiedPS5 {
		if u == unit {
			return false
		}
	}
	return unit >= 1 && unit <= PS5Units
}

// Ledger holds the active device entries for one date.
type Ledger struct {
	entries []Entry
}

// New builds a ledger from bookings; cancelled bookings are ignored.
func New(bookings []model.Booking) *Ledger {
	l := &Ledger{}
	for _, b := range bookings {
		if !b.Active() {
			continue
		}
		for _, d := range b.Devices {
			l.entries = append(l.entries, Entry{
				BookingID: b.ID,
				Start:     b.StartMinute,
				Duration:  b.DurationMinutes,
				Device:    d.DeviceType,
				Unit:      d.Unit(),
				Players:   d.PlayerCount,
			})
		}
	}
	sort.SliceStable(l.entries, func(i, j int) bool { return l.entries[i].Start < l.entries[j].Start })
	return l
}

// Entries returns the ledger's entries ordered by start.
func (l *Ledger) Entries() []Entry { return l.entries }

// At returns the occupancy at instant t.
func (l *Ledger) At(t slot.Clock) Occupancy {
	return l.Range(t, 1)
}

// Range returns the occupancy across [start, start+duration). Units and the
// simulator count as occupied when any overlapping entry uses them;
// TotalPS5Players is the peak number of simultaneous PS5 players.
func (l *Ledger) Range(start slot.Clock, duration int) Occupancy {
	var occ Occupancy
	busy := map[int]bool{}
	// Overlap sums only change at entry starts, so the peak is found by
	// probing the range start plus every entry start inside the range.
	probes := []slot.Clock{start}
	for _, e := range l.entries {
		if !e.overlaps(start, duration) {
			continue
		}
		occ.Booked = true
		switch e.Device {
		case model.DevicePS5:
			busy[e.Unit] = true
			if e.Start > start {
				probes = append(probes, e.Start)
			}
		case model.DeviceDriving:
			occ.DrivingBooked = true
		}
	}
	for _, p := range probes {
		if n := l.ps5PlayersAt(p); n > occ.TotalPS5Players {
			occ.TotalPS5Players = n
		}
	}
	occ.OccupiedPS5 = []int{}
	occ.AvailablePS5 = []int{}
	for u := 1; u <= PS5Units; u++ {
		if busy[u] {
			occ.OccupiedPS5 = append(occ.OccupiedPS5, u)
		} else {
			occ.AvailablePS5 = append(occ.AvailablePS5, u)
		}
	}
	occ.AvailableDriving = !occ.DrivingBooked
	return occ
}

func (l *Ledger) ps5PlayersAt(t slot.Clock) int {
	n := 0
	for _, e := range l.entries {
		if e.Device == model.DevicePS5 && slot.Contains(e.Start, e.Duration, t) {
			n += e.Players
		}
	}
	return n
}
