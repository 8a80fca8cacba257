package merchant

// similarityRatio computes a Ratcliff/Obershelp ratio in [0,1]: twice the
// total length of recursively matched common substrings over the combined
// length. Matches Python difflib.SequenceMatcher.ratio closely enough for
// the 0.75 acceptance threshold used here.
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	matched := matchTotal(a, b)
	return 2.0 * float64(matched) / float64(len(a)+len(b))
}

// matchTotal sums the longest common substring and, recursively, the
// matches to its left and right.
func matchTotal(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchTotal(a[:ai], b[:bi])
	total += matchTotal(a[ai+size:], b[bi+size:])
	return total
}

// longestCommonSubstring returns the start offsets in a and b and the
// length of their longest common substring. Earliest-in-a wins ties.
func longestCommonSubstring(a, b string) (int, int, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	bestA, bestB, bestSize := 0, 0, 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestSize {
					bestSize = curr[j]
					bestA = i - bestSize
					bestB = j - bestSize
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return bestA, bestB, bestSize
}
