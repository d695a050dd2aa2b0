package readstate

import "testing"

// event builds a scroll event from overflow, offset and viewport height.
func event(viewport, overflow, offset float64) ScrollEvent {
	return ScrollEvent{
		ViewportHeight: viewport,
		ContentHeight:  viewport + overflow,
		ScrollOffsetY:  offset,
	}
}

func TestScrollEvent_Derived(t *testing.T) {
	e := ScrollEvent{ViewportHeight: 600, ContentHeight: 800, ScrollOffsetY: 150}
	if got := e.Overflow(); got != 200 {
		t.Errorf("Overflow = %v, want 200", got)
	}
	if got := e.BottomDistance(); got != 50 {
		t.Errorf("BottomDistance = %v, want 50", got)
	}
}

func TestPolicy_ShouldComplete(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name string
		ev   ScrollEvent
		want bool
	}{
		// overflow 40 < 80 and offset 10 < 24: short document, bottom distance 30 <= 32
		{"short document never completes", event(600, 40, 10), false},
		// overflow 200, offset 150 → bottom distance 50
		{"long document not at bottom", event(600, 200, 150), false},
		// overflow 200, offset 180 → bottom distance 20
		{"long document at bottom", event(600, 200, 180), true},
		{"long document at top", event(600, 200, 0), false},
		{"exactly at threshold", event(600, 200, 168), true},
		{"one past threshold", event(600, 200, 167), false},
		{"overflow exactly minimum", event(600, 80, 48), true},
		{"end-to-end scenario event", event(600, 300, 285), true},
		{"overscroll past the end", event(600, 200, 260), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldComplete(tt.ev); got != tt.want {
				t.Errorf("ShouldComplete(%+v) = %v, want %v (overflow=%v bottom=%v)",
					tt.ev, got, tt.want, tt.ev.Overflow(), tt.ev.BottomDistance())
			}
		})
	}
}

// Medium documents have 24 <= overflow < 80: they only qualify through the
// scroll-distance branch. Documents with overflow < 24 can never scroll 24
// points, so they never complete by scrolling.
func TestPolicy_MediumDocumentBoundary(t *testing.T) {
	p := DefaultPolicy()

	t.Run("medium document completes at true bottom", func(t *testing.T) {
		ev := event(600, 50, 50)
		if !p.Scrollable(ev) || !p.NearBottom(ev) {
			t.Fatalf("Scrollable=%v NearBottom=%v, want both true", p.Scrollable(ev), p.NearBottom(ev))
		}
		if !p.ShouldComplete(ev) {
			t.Error("a medium document scrolled to its end should complete")
		}
	})

	t.Run("medium document before scrolling enough", func(t *testing.T) {
		// Already within 32 of the bottom at offset 20, but scrolled < 24.
		ev := event(600, 50, 20)
		if !p.NearBottom(ev) {
			t.Fatal("expected NearBottom")
		}
		if p.ShouldComplete(ev) {
			t.Error("must not complete before the minimum scroll distance")
		}
	})

	t.Run("overflow equal to min scroll completes at bottom", func(t *testing.T) {
		if !p.ShouldComplete(event(600, 24, 24)) {
			t.Error("overflow 24 scrolled to the end should complete")
		}
	})

	t.Run("tiny overflow never completes", func(t *testing.T) {
		for offset := 0.0; offset <= 23; offset++ {
			if p.ShouldComplete(event(600, 23, offset)) {
				t.Fatalf("overflow 23 completed at offset %v", offset)
			}
		}
	})
}

func TestPolicy_Custom(t *testing.T) {
	p := Policy{DoneThresholdPx: 0, MinScrollYToComplete: 1000, MinOverflowToScroll: 1000}
	if p.ShouldComplete(event(600, 500, 500)) {
		t.Error("custom policy: overflow and offset below both minimums should not complete")
	}
	p.MinOverflowToScroll = 100
	if !p.ShouldComplete(event(600, 500, 500)) {
		t.Error("custom policy: should complete exactly at the end with threshold 0")
	}
}
