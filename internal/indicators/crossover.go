package indicators

// Cross direction values produced by CrossOver.
const (
	CrossDown = -1
	CrossNone = 0
	CrossUp   = 1
)

// CrossOver marks where fast crosses slow: +1 when fast moves above slow, -1 when it
// moves below, 0 otherwise. A touch (equal values) does not reset the side, so
// fast dipping to slow and bouncing back is not a cross. Indices before start are 0.
func CrossOver(fast, slow []float64, start int) []int {
	n := len(fast)
	if len(slow) < n {
		n = len(slow)
	}
	result := make([]int, n)
	if start < 0 {
		start = 0
	}

	side := 0 // sign of the last non-zero difference
	for i := start; i < n; i++ {
		diff := fast[i] - slow[i]
		switch {
		case diff > 0:
			if side < 0 {
				result[i] = CrossUp
			}
			side = 1
		case diff < 0:
			if side > 0 {
				result[i] = CrossDown
			}
			side = -1
		}
	}
	return result
}
