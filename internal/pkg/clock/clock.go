package clock

import (
	"time"

	"github.com/samirrijal/dineradar/internal/core/ports"
)

// System is the wall clock backed by the time package.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}
