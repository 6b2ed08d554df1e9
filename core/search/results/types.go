// Package results holds the per-view search match sequences used for browsing
// search hits: a page-sorted Index per view, the Registry that owns those
// indexes, and circular next/previous navigation over them.
//
// Nothing in this package is safe for concurrent use. All access is expected to
// happen on the single controller goroutine that owns the Registry.
package results

import "fmt"

// ViewID identifies one open document view. IDs are issued monotonically by the
// owning controller and are never reused, so they order views by opening time.
type ViewID uint64

// InvalidView is never issued to a real view.
const InvalidView ViewID = 0

// String returns a short, log-friendly form of the ID.
func (v ViewID) String() string {
	return fmt.Sprintf("view-%d", uint64(v))
}

// Rect is a rectangle normalized to page-local coordinates in [0,1].
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Match is a single search hit: a 1-based page number and the matched area.
type Match struct {
	Page int  `json:"page"`
	Rect Rect `json:"rect"`
}

// Direction selects the stepping direction for Find.
type Direction int

const (
	// Next steps forward, wrapping from the last match to the first.
	Next Direction = iota
	// Previous steps backward, wrapping from the first match to the last.
	Previous
)

var directionNames = map[Direction]string{
	Next:     "next",
	Previous: "previous",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return "unknown"
}

// ParseDirection converts "next"/"previous" (or "prev") into a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "next", "n":
		return Next, true
	case "previous", "prev", "p":
		return Previous, true
	default:
		return Next, false
	}
}
