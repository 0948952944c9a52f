package usecases

import (
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/pkg/geospatial"
)

const (
	// FuzzyMatchDegrees is the per-axis tolerance for matching the same place
	// across sources by coordinates (about 11 m).
	FuzzyMatchDegrees = 0.0001

	// DefaultFocusTimeout bounds how long a forced-visible override survives.
	DefaultFocusTimeout = 10 * time.Second
)

// FocusTarget is a resolved focus request.
type FocusTarget struct {
	Restaurant  domain.Restaurant
	RequestedID string
	// Translated is set when the visible item carries a different id than requested.
	Translated bool
	// Override is set when the item is not in the visible set and must be
	// force-included before the map can focus it.
	Override bool
}

// ID is the id to use for fly-to and highlight.
func (t FocusTarget) ID() string { return t.Restaurant.ID }

// ResolveFocus finds the restaurant to focus for id.
//
// An exact id match in visible wins. Otherwise the id is looked up across the
// known sets and its coordinates are matched against visible within
// FuzzyMatchDegrees. A known item with no visible counterpart comes back with
// Override set. domain.ErrNotFound means nothing anywhere matched.
func ResolveFocus(id string, visible []domain.Restaurant, known ...[]domain.Restaurant) (FocusTarget, error) {
	for _, r := range visible {
		if r.ID == id {
			return FocusTarget{Restaurant: r, RequestedID: id}, nil
		}
	}

	var (
		found domain.Restaurant
		ok    bool
	)
	for _, set := range known {
		for _, r := range set {
			if r.ID == id {
				found, ok = r, true
				break
			}
		}
		if ok {
			break
		}
	}
	if !ok {
		return FocusTarget{RequestedID: id}, fmt.Errorf("focus %q: %w", id, domain.ErrNotFound)
	}

	c := found.Coordinates
	for _, r := range visible {
		if geospatial.Near(c.Lat, c.Lng, r.Coordinates.Lat, r.Coordinates.Lng, FuzzyMatchDegrees) {
			return FocusTarget{Restaurant: r, RequestedID: id, Translated: r.ID != id}, nil
		}
	}

	return FocusTarget{Restaurant: found, RequestedID: id, Override: true}, nil
}

// Selection tracks the focused restaurant and the override list of items
// force-included into the visible set. A focus that is never resolved
// against the base visible list expires after the timeout and takes its
// override with it.
type Selection struct {
	clock   ports.Clock
	timeout time.Duration

	mu        sync.Mutex
	focusedID string
	overrides []domain.Restaurant
	timer     ports.Timer
	gen       uint64
	onExpire  func(id string)
}

// NewSelection creates a Selection. A non-positive timeout uses DefaultFocusTimeout.
func NewSelection(clock ports.Clock, timeout time.Duration) *Selection {
	if timeout <= 0 {
		timeout = DefaultFocusTimeout
	}
	return &Selection{clock: clock, timeout: timeout}
}

// OnExpire registers a callback run, outside the lock, when a focus expires.
func (s *Selection) OnExpire(fn func(id string)) {
	s.mu.Lock()
	s.onExpire = fn
	s.mu.Unlock()
}

// Focus resolves id against visible (which should already include the
// current overrides) and the known sets. An override target is added to the
// override list and becomes the focused id until resolved or expired. A
// visible target drops any other pending focus and its override.
func (s *Selection) Focus(id string, visible []domain.Restaurant, known ...[]domain.Restaurant) (FocusTarget, error) {
	target, err := ResolveFocus(id, visible, known...)
	if err != nil {
		return target, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !target.Override {
		// a visible target replaces any other pending focus
		if s.focusedID != "" && s.focusedID != target.Restaurant.ID {
			s.clearLocked()
		}
		return target, nil
	}

	s.removeOverrideLocked(s.focusedID)
	s.overrides = append(s.overrides, target.Restaurant)
	s.focusedID = target.Restaurant.ID

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.timeout, func() { s.expire(gen) })
	return target, nil
}

// Observe resolves the pending focus once its item shows up in the base
// (filtered, override-free) visible list. It reports whether a focus resolved.
func (s *Selection) Observe(base []domain.Restaurant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.focusedID == "" {
		return false
	}
	for _, r := range base {
		if r.ID == s.focusedID {
			s.clearLocked()
			return true
		}
	}
	return false
}

func (s *Selection) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.focusedID == "" {
		s.mu.Unlock()
		return
	}
	id := s.focusedID
	s.clearLocked()
	fn := s.onExpire
	s.mu.Unlock()

	if fn != nil {
		fn(id)
	}
}

func (s *Selection) clearLocked() {
	s.removeOverrideLocked(s.focusedID)
	s.focusedID = ""
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Selection) removeOverrideLocked(id string) {
	if id == "" {
		return
	}
	kept := s.overrides[:0]
	for _, r := range s.overrides {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.overrides = kept
}

// FocusedID returns the pending focus, or "".
func (s *Selection) FocusedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusedID
}

// Overrides returns a copy of the override list.
func (s *Selection) Overrides() []domain.Restaurant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Restaurant(nil), s.overrides...)
}

// Close drops the pending focus and its timer.
func (s *Selection) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.overrides = nil
}
