package player

// stopAfterCurrent is a one-shot armed marker that stops playback once
// a specific track finishes. DISARMED -> ARMED(trackID) -> DISARMED on
// fire, explicit toggle-off, or identity mismatch at invalidation.
type stopAfterCurrent struct {
	enabled bool
	trackID string
}

func (s *stopAfterCurrent) isOn() bool {
	return s.enabled
}

func (s *stopAfterCurrent) arm(trackID string) {
	s.enabled = trackID != ""
	if s.enabled {
		s.trackID = trackID
	} else {
		s.trackID = ""
	}
}

func (s *stopAfterCurrent) disarm() {
	s.enabled = false
	s.trackID = ""
}

// toggle arms the marker for trackID, or disarms when already armed.
// It reports the resulting armed state.
func (s *stopAfterCurrent) toggle(trackID string) bool {
	if s.enabled {
		s.disarm()
	} else {
		s.arm(trackID)
	}
	return s.enabled
}

// fire reports whether playback must stop now that trackID finished,
// and disarms when it does.
func (s *stopAfterCurrent) fire(trackID string) bool {
	if !s.enabled || s.trackID == "" || s.trackID != trackID {
		return false
	}
	s.disarm()
	return true
}

// invalidate disarms the marker when the armed track disappears from
// the queue.
func (s *stopAfterCurrent) invalidate(present func(trackID string) bool) {
	if s.enabled && !present(s.trackID) {
		s.disarm()
	}
}
