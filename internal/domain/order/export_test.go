package order

import "time"

// SetClock replaces the engine clock.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
