package facematch

// BBoxArea returns the area of a bounding box given as [x1, y1, x2, y2].
// Malformed or inverted boxes have zero area.
func BBoxArea(bbox []float64) float64 {
	if len(bbox) != 4 {
		return 0
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// LargestBBox returns the index of the box with the largest area, or -1 for no boxes.
// The first box wins on ties, so detector order decides between equal faces.
func LargestBBox(bboxes [][]float64) int {
	best := -1
	var bestArea float64
	for i, bbox := range bboxes {
		area := BBoxArea(bbox)
		if best < 0 || area > bestArea {
			best = i
			bestArea = area
		}
	}
	return best
}
