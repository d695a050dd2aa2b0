package readstate

// Default scroll completion thresholds, in points.
const (
	DefaultDoneThresholdPx      = 32
	DefaultMinScrollYToComplete = 24
	DefaultMinOverflowToScroll  = 80
)

// ScrollEvent is one scroll position report from the render surface.
type ScrollEvent struct {
	ViewportHeight float64 `json:"viewportHeight"`
	ContentHeight  float64 `json:"contentHeight"`
	ScrollOffsetY  float64 `json:"scrollOffsetY"`
}

// Overflow is how much taller the content is than the viewport.
func (e ScrollEvent) Overflow() float64 {
	return e.ContentHeight - e.ViewportHeight
}

// BottomDistance is how far the bottom of the viewport is from the end of the content.
func (e ScrollEvent) BottomDistance() float64 {
	return e.ContentHeight - (e.ScrollOffsetY + e.ViewportHeight)
}

// Policy decides when a scroll position means the document has been read.
type Policy struct {
	DoneThresholdPx      float64
	MinScrollYToComplete float64
	MinOverflowToScroll  float64
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		DoneThresholdPx:      DefaultDoneThresholdPx,
		MinScrollYToComplete: DefaultMinScrollYToComplete,
		MinOverflowToScroll:  DefaultMinOverflowToScroll,
	}
}

// Scrollable reports whether completing by scroll is allowed at all: either
// the document is long enough to need scrolling, or the user has scrolled a
// minimum distance. Documents that fit on screen are never completed on
// first render.
func (p Policy) Scrollable(e ScrollEvent) bool {
	return e.Overflow() >= p.MinOverflowToScroll || e.ScrollOffsetY >= p.MinScrollYToComplete
}

// NearBottom reports whether the viewport is within the done threshold of the end.
func (p Policy) NearBottom(e ScrollEvent) bool {
	return e.BottomDistance() <= p.DoneThresholdPx
}

// ShouldComplete combines Scrollable and NearBottom.
func (p Policy) ShouldComplete(e ScrollEvent) bool {
	return p.Scrollable(e) && p.NearBottom(e)
}
