package extractor

import (
	"math"
	"sort"
)

// gridSize is the position-bucketing cell size in text-space units. PDF
// renderers that stroke the same glyphs several times (shadow/bold emulation,
// duplicated layers) land in the same cell and collapse to one run.
const gridSize = 5.0

func cellOf(v float64) int {
	return int(math.Round(v / gridSize))
}

// DedupRuns collapses runs that share a position cell, keeping the longest
// string per cell. The operation is idempotent: output runs occupy distinct
// cells, so a second pass returns its input unchanged.
func DedupRuns(runs []Run) []Run {
	type cell struct{ x, y int }
	out := make([]Run, 0, len(runs))
	index := make(map[cell]int, len(runs))
	for _, r := range runs {
		c := cell{cellOf(r.X), cellOf(r.Y)}
		if i, ok := index[c]; ok {
			if len(r.Text) > len(out[i].Text) {
				out[i] = r
			}
			continue
		}
		index[c] = len(out)
		out = append(out, r)
	}
	return out
}

// SortRuns orders runs top-to-bottom then left-to-right. PDF device space
// grows upward, so larger Y comes first. Y comparison is grid-bucketed so
// runs on the same visual line with sub-cell baseline jitter keep their
// left-to-right order.
func SortRuns(runs []Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		yi, yj := cellOf(runs[i].Y), cellOf(runs[j].Y)
		if yi != yj {
			return yi > yj
		}
		return runs[i].X < runs[j].X
	})
}
