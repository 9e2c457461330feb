package model

// BBox is an axis-aligned bounding box in page pixel coordinates,
// origin at the top-left corner.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// CenterY returns the vertical midpoint of the box.
func (b BBox) CenterY() float64 { return float64(b.Y1+b.Y2) / 2 }

// Union returns the smallest box containing both b and other.
func (b BBox) Union(other BBox) BBox {
	out := b
	if other.X1 < out.X1 {
		out.X1 = other.X1
	}
	if other.Y1 < out.Y1 {
		out.Y1 = other.Y1
	}
	if other.X2 > out.X2 {
		out.X2 = other.X2
	}
	if other.Y2 > out.Y2 {
		out.Y2 = other.Y2
	}
	return out
}

// UnionBoxes returns the union of all boxes, or nil for an empty slice.
func UnionBoxes(boxes []BBox) *BBox {
	if len(boxes) == 0 {
		return nil
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Union(b)
	}
	return &out
}
