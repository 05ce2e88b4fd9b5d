package taxonomy

// Ratio returns the Ratcliff/Obershelp similarity of a and b in [0,1]:
// twice the number of matched characters divided by the total length.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingChars(ra, rb)) / float64(total)
}

// matchingChars sums the sizes of the recursively found longest common blocks.
func matchingChars(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingChars(a[:i], b[:j]) + matchingChars(a[i+size:], b[j+size:])
}

// longestMatch finds the longest common substring, preferring the earliest
// start in a and then in b.
func longestMatch(a, b []rune) (int, int, int) {
	bestI, bestJ, bestSize := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestSize {
					bestSize = cur[j]
					bestI, bestJ = i-cur[j], j-cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestSize
}
