package availability

import (
	"sort"
	"time"
)

// Span is a half-open time-of-day range in minutes from midnight,
// [Start, End). It describes both working windows and blocked periods.
type Span struct {
	Start int
	End   int
}

func (s Span) Valid() bool {
	return s.End > s.Start
}

// Interval is a half-open absolute time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Booking is a confirmed reservation occupying one or more resources.
type Booking struct {
	Resources []int64
	Start     time.Time
	End       time.Time
}

// Slot is one fixed-duration cell of the day grid. Resources holds the
// ids of the requested resources free for the whole slot, ascending;
// Available is true iff Resources is non-empty.
type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
	Resources []int64
}

// Config carries the scheduling defaults. Callers pass it explicitly so
// tests and per-portal settings can override without global state.
type Config struct {
	// DefaultWindow applies to any requested resource missing from the
	// windows map.
	DefaultWindow Span
	SlotDuration  time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultWindow: Span{Start: 8 * 60, End: 20 * 60},
		SlotDuration:  time.Hour,
	}
}

// ComputeSlots partitions the union of the requested resources' working
// windows on the given day into fixed-size slots and reports, per slot,
// which resources are free.
//
// A resource is free for a slot iff the slot lies fully inside that
// resource's window, overlaps none of its blocked spans, and overlaps no
// booking referencing it. Slot boundaries are unionStart + k*SlotDuration;
// a trailing remainder shorter than SlotDuration is not emitted. A slot
// that only partially fits a resource's window counts that resource as
// unavailable, never clipped.
//
// Preconditions: a non-positive SlotDuration yields nil, as does an empty
// resource set. A window or blocked span whose end does not follow its
// start is ignored; a resource whose effective window is ignored this way
// contributes nothing to the union and is never free.
//
// The result is ordered by start time and deterministic: duplicate
// resource ids are collapsed and no clock is read.
func ComputeSlots(day time.Time, resourceIDs []int64, windows map[int64]Span, blocked map[int64][]Span, bookings []Booking, cfg Config) []Slot {
	if cfg.SlotDuration <= 0 {
		return nil
	}
	ids := dedupeIDs(resourceIDs)
	if len(ids) == 0 {
		return nil
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	type resourceDay struct {
		window  Interval
		blocked []Interval
		busy    []Interval
	}
	days := make(map[int64]*resourceDay, len(ids))

	var unionStart, unionEnd time.Time
	for _, id := range ids {
		w, ok := windows[id]
		if !ok {
			w = cfg.DefaultWindow
		}
		if !w.Valid() {
			continue
		}
		rd := &resourceDay{window: anchor(midnight, w)}
		for _, b := range blocked[id] {
			if b.Valid() {
				rd.blocked = append(rd.blocked, anchor(midnight, b))
			}
		}
		days[id] = rd

		if unionStart.IsZero() || rd.window.Start.Before(unionStart) {
			unionStart = rd.window.Start
		}
		if rd.window.End.After(unionEnd) {
			unionEnd = rd.window.End
		}
	}
	if len(days) == 0 {
		return nil
	}

	for _, b := range bookings {
		if !b.End.After(b.Start) {
			continue
		}
		for _, id := range b.Resources {
			if rd := days[id]; rd != nil {
				rd.busy = append(rd.busy, Interval{Start: b.Start, End: b.End})
			}
		}
	}

	var slots []Slot
	for t := unionStart; !t.Add(cfg.SlotDuration).After(unionEnd); t = t.Add(cfg.SlotDuration) {
		end := t.Add(cfg.SlotDuration)
		var free []int64
		for _, id := range ids {
			rd := days[id]
			if rd == nil {
				continue
			}
			if t.Before(rd.window.Start) || end.After(rd.window.End) {
				continue
			}
			if overlapsAny(t, end, rd.blocked) || overlapsAny(t, end, rd.busy) {
				continue
			}
			free = append(free, id)
		}
		slots = append(slots, Slot{Start: t, End: end, Available: len(free) > 0, Resources: free})
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func anchor(midnight time.Time, s Span) Interval {
	return Interval{
		Start: midnight.Add(time.Duration(s.Start) * time.Minute),
		End:   midnight.Add(time.Duration(s.End) * time.Minute),
	}
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
