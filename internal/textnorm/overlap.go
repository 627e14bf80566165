package textnorm

// BagOfWordsOverlap returns the fraction of query words that appear anywhere
// in the target, after normalizing both. An empty query overlaps fully; an
// empty target overlaps nothing.
func BagOfWordsOverlap(query, target string) float64 {
	queryWords := Words(query)
	targetWords := Words(target)
	if len(queryWords) == 0 {
		return 1
	}
	if len(targetWords) == 0 {
		return 0
	}

	targetSet := make(map[string]struct{}, len(targetWords))
	for _, w := range targetWords {
		targetSet[w] = struct{}{}
	}

	matched := 0
	for _, w := range queryWords {
		if _, ok := targetSet[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}

// OrderedOverlap is the order-sensitive variant of BagOfWordsOverlap: the
// matched count is the longest common subsequence of the two word sequences.
func OrderedOverlap(query, target string) float64 {
	queryWords := Words(query)
	targetWords := Words(target)
	if len(queryWords) == 0 {
		return 1
	}
	if len(targetWords) == 0 {
		return 0
	}
	return float64(LCSLength(queryWords, targetWords)) / float64(len(queryWords))
}

// HasOverlap reports whether the query overlaps the target by at least
// threshold (in [0, 1]). With ordered set, word order must be preserved.
func HasOverlap(query, target string, threshold float64, ordered bool) bool {
	if len(Words(query)) == 0 {
		return true
	}
	if len(Words(target)) == 0 {
		return threshold == 0
	}
	if ordered {
		return OrderedOverlap(query, target) >= threshold
	}
	return BagOfWordsOverlap(query, target) >= threshold
}

// LCSLength returns the length of the longest common subsequence of a and b.
func LCSLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Two rolling rows of the classic DP table.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
