package lookup

import "testing"

func TestPlace(t *testing.T) {
	t.Parallel()

	container := Rect{X: 0, Y: 0, Width: 400, Height: 300}
	popup := Size{Width: 100, Height: 50}

	tests := []struct {
		name        string
		anchor      Point
		want        Point
		wantFlipped bool
	}{
		{"above centred", Point{X: 200, Y: 150}, Point{X: 150, Y: 92}, false},
		{"flips below near top", Point{X: 200, Y: 30}, Point{X: 150, Y: 38}, true},
		{"clamped left", Point{X: 10, Y: 150}, Point{X: 0, Y: 92}, false},
		{"clamped right", Point{X: 395, Y: 150}, Point{X: 300, Y: 92}, false},
		{"touching top edge stays above", Point{X: 200, Y: 58}, Point{X: 150, Y: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, flipped := Place(tt.anchor, popup, container, DefaultPopupOffset)
			if got != tt.want || flipped != tt.wantFlipped {
				t.Errorf("Place(%v) = %v, %v; want %v, %v", tt.anchor, got, flipped, tt.want, tt.wantFlipped)
			}
		})
	}
}

func TestPlace_FlippedClampedToBottom(t *testing.T) {
	t.Parallel()

	got, flipped := Place(Point{X: 200, Y: 40}, Size{Width: 100, Height: 50}, Rect{Width: 400, Height: 80}, DefaultPopupOffset)
	if !flipped {
		t.Error("expected popup to flip below the anchor")
	}
	if got.Y != 30 {
		t.Errorf("Y = %v, want 30", got.Y)
	}
}

func TestPlace_PopupLargerThanContainer(t *testing.T) {
	t.Parallel()

	got, _ := Place(Point{X: 50, Y: 50}, Size{Width: 500, Height: 500}, Rect{X: 10, Y: 20, Width: 100, Height: 100}, DefaultPopupOffset)
	if got.X != 10 || got.Y != 20 {
		t.Errorf("Place = %v, want container origin", got)
	}
}
