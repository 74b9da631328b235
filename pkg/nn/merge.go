package nn

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/chewxy/math32"
)

// SuppressOverlaps removes detections that overlap a more confident detection of the same class
// by at least minIoU. The survivors keep their input order.
func SuppressOverlaps(input []RawDetection, minIoU float32) []RawDetection {
	if len(input) < 2 {
		return input
	}

	// Create spatial index to avoid O(N^2) comparisons
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(input))
	for _, d := range input {
		x1, y1, x2, y2 := indexBounds(d.Box)
		fb.Add(x1, y1, x2, y2)
	}
	fb.Finish()

	// Visit from most confident to least confident, so that the winner of a pair is already decided
	order := make([]int, len(input))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return input[order[a]].Confidence > input[order[b]].Confidence
	})

	deleted := make([]bool, len(input))
	for _, i := range order {
		if deleted[i] {
			continue
		}
		in := &input[i]
		x1, y1, x2, y2 := indexBounds(in.Box)
		for _, j := range fb.Search(x1, y1, x2, y2) {
			if i == j || deleted[j] {
				continue
			}
			if input[j].ClassID != in.ClassID {
				continue
			}
			if input[j].Confidence > in.Confidence {
				continue
			}
			if in.Box.IOU(input[j].Box) >= minIoU {
				deleted[j] = true
			}
		}
	}

	retain := make([]RawDetection, 0, len(input))
	for i := range input {
		if !deleted[i] {
			retain = append(retain, input[i])
		}
	}
	return retain
}

// Integer bounds that enclose r, for the spatial index
func indexBounds(r Rect) (int32, int32, int32, int32) {
	return int32(math32.Floor(r.Left)), int32(math32.Floor(r.Top)), int32(math32.Ceil(r.Right)), int32(math32.Ceil(r.Bottom))
}
