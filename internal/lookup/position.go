package lookup

// Point is a screen coordinate in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width and height in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultPopupOffset is the gap between the hovered word and the popup.
const DefaultPopupOffset = 8

// Place positions a popup of the given size near anchor inside container.
// The popup is centred horizontally on the anchor and sits above it; when
// that would overflow the container's top edge it flips below the anchor.
// The result is clamped to the container. flipped reports the flip.
func Place(anchor Point, popup Size, container Rect, offset float64) (pos Point, flipped bool) {
	pos.X = anchor.X - popup.Width/2
	pos.Y = anchor.Y - popup.Height - offset
	if pos.Y < container.Y {
		pos.Y = anchor.Y + offset
		flipped = true
	}

	pos.X = clamp(pos.X, container.X, container.X+container.Width-popup.Width)
	pos.Y = clamp(pos.Y, container.Y, container.Y+container.Height-popup.Height)
	return pos, flipped
}

// clamp bounds v to [lo, hi]. When hi < lo the popup is larger than the
// container and lo wins.
func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
