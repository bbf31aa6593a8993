package session

import "slices"

// Confirmation reports one identity crossing the confirmation
// threshold, carrying the confidence of the confirming frame.
type Confirmation struct {
	PersonID   uint
	Confidence float64
}

// FrameAdvance summarizes what one processed frame did to the
// counters.
type FrameAdvance struct {
	Confirmed  []Confirmation
	Increments int
	Decrements int
}

// Tracker converts noisy per-frame match results into at most one
// confirmed event per identity per day. A matched frame raises the
// identity's counter by one, a frame without a match lowers it by one
// down to zero, and reaching the threshold confirms: isolated false
// negatives do not reset progress and isolated false positives do not
// commit on their own.
//
// A tracker is owned by exactly one session goroutine and is not safe
// for concurrent use.
type Tracker struct {
	threshold int
	counters  map[uint]int

	// confirmedOn is the calendar date the confirmed set belongs to.
	// A new date starts a fresh set, so yesterday's confirmations stop
	// suppressing without an explicit reset.
	confirmedOn string
	confirmed   map[uint]struct{}
}

// NewTracker creates a tracker confirming after threshold net
// consecutive matches. Thresholds below one confirm on the first
// match.
func NewTracker(threshold int) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{
		threshold: threshold,
		counters:  make(map[uint]int),
		confirmed: make(map[uint]struct{}),
	}
}

// Threshold returns the confirmation threshold.
func (t *Tracker) Threshold() int {
	return t.threshold
}

// Count returns the live counter for an identity, zero when idle.
func (t *Tracker) Count(id uint) int {
	return t.counters[id]
}

// Confirmed reports whether the identity already confirmed on the
// given date.
func (t *Tracker) Confirmed(date string, id uint) bool {
	if date != t.confirmedOn {
		return false
	}
	_, ok := t.confirmed[id]
	return ok
}

// ConfirmedCount returns how many identities confirmed on the date.
func (t *Tracker) ConfirmedCount(date string) int {
	if date != t.confirmedOn {
		return 0
	}
	return len(t.confirmed)
}

// Advance applies one processed frame. matched maps the identities
// matched in this frame to the confidence of their match; every other
// identity with a live counter decrements. The returned advance lists
// the identities that reached the threshold on this frame; each
// confirms at most once per date, and further matches on later frames
// leave it untouched.
func (t *Tracker) Advance(date string, matched map[uint]float64) FrameAdvance {
	t.rollover(date)

	var adv FrameAdvance
	for id, confidence := range matched {
		if _, done := t.confirmed[id]; done {
			continue
		}
		t.counters[id]++
		adv.Increments++
		if t.counters[id] >= t.threshold {
			delete(t.counters, id)
			t.confirmed[id] = struct{}{}
			adv.Confirmed = append(adv.Confirmed, Confirmation{
				PersonID:   id,
				Confidence: confidence,
			})
		}
	}

	for id, count := range t.counters {
		if _, ok := matched[id]; ok {
			continue
		}
		count--
		adv.Decrements++
		if count <= 0 {
			delete(t.counters, id)
			continue
		}
		t.counters[id] = count
	}

	slices.SortFunc(adv.Confirmed, func(a, b Confirmation) int {
		return int(a.PersonID) - int(b.PersonID)
	})
	return adv
}

// rollover starts a fresh confirmed set when the calendar date moves.
func (t *Tracker) rollover(date string) {
	if date == t.confirmedOn {
		return
	}
	t.confirmedOn = date
	if len(t.confirmed) > 0 {
		t.confirmed = make(map[uint]struct{})
	}
}
