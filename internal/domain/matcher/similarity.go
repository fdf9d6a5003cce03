package matcher

import (
	"strings"
)

// Blend weights for the combined similarity score. Token overlap rewards
// word reordering, the sequence ratio rewards partial-substring overlap.
const (
	tokenWeight    = 0.4
	sequenceWeight = 0.6
)

// Similarity scores two already-normalized names in [0, 1]. Equal strings
// score 1.0; an empty side scores 0.0. Otherwise the score is a weighted
// blend of token-set Jaccard similarity and a Ratcliff/Obershelp sequence
// ratio.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	return tokenWeight*jaccard(a, b) + sequenceWeight*sequenceRatio(a, b)
}

// jaccard computes |A∩B| / |A∪B| over whitespace-split token sets.
func jaccard(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// sequenceRatio is the Ratcliff/Obershelp ratio: twice the number of
// characters in recursively found longest matching blocks, divided by the
// total length of both strings.
func sequenceRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0.0
	}
	return 2.0 * float64(matchingChars(ra, rb)) / float64(total)
}

// matchingChars counts characters covered by the longest common substring
// and, recursively, the matches to its left and right.
func matchingChars(a, b []rune) int {
	ai, bi, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

// longestCommonBlock finds the longest common substring of a and b,
// returning its start in each and its length. On ties the block starting
// earliest in a wins, then the one starting earliest in b.
func longestCommonBlock(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// prev[j] holds the common-suffix length ending at a[i-2], b[j-1].
	// Walking j ascending with a strict > means earlier starts keep ties.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					ai = i - size
					bi = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return ai, bi, size
}
