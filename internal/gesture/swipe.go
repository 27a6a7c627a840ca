// Package gesture classifies raw touch coordinates into navigation gestures.
package gesture

// DefaultThreshold is the minimum horizontal travel for a swipe. The game
// screen raises it to 75 to avoid accidental page turns from small hands.
const DefaultThreshold = 50

// SwipeDetector converts touch-start/touch-end coordinate pairs into discrete
// left/right swipe callbacks. A gesture only fires on touch-end, only when
// horizontal travel dominates vertical travel and exceeds the threshold.
// The zero value is unusable; use NewSwipeDetector.
type SwipeDetector struct {
	threshold    float64
	onSwipeLeft  func()
	onSwipeRight func()

	active bool
	startX float64
	startY float64
}

func NewSwipeDetector(threshold float64, onSwipeLeft, onSwipeRight func()) *SwipeDetector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &SwipeDetector{
		threshold:    threshold,
		onSwipeLeft:  onSwipeLeft,
		onSwipeRight: onSwipeRight,
	}
}

// TouchStart records the origin of a gesture in progress.
func (d *SwipeDetector) TouchStart(x, y float64) {
	d.active = true
	d.startX = x
	d.startY = y
}

// TouchEnd classifies the finished gesture and resets the detector state
// regardless of outcome. Without a preceding TouchStart it does nothing.
func (d *SwipeDetector) TouchEnd(x, y float64) {
	if !d.active {
		return
	}
	deltaX := x - d.startX
	deltaY := y - d.startY

	d.active = false
	d.startX = 0
	d.startY = 0

	if abs(deltaX) <= abs(deltaY) || abs(deltaX) <= d.threshold {
		return
	}
	if deltaX > 0 {
		if d.onSwipeRight != nil {
			d.onSwipeRight()
		}
		return
	}
	if d.onSwipeLeft != nil {
		d.onSwipeLeft()
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
