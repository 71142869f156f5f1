package tree

import "math"

// #region entropy

// Entropy is the base-2 Shannon entropy of a class histogram. Empty classes
// contribute nothing and an empty histogram has entropy 0.
func Entropy(counts []int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// InformationGain is H(parent) − Σ |child|/|parent| · H(child) for a binary
// partition of parent into left and right.
func InformationGain(parent, left, right []int) float64 {
	n := sum(parent)
	if n == 0 {
		return 0
	}
	nl := sum(left)
	nr := sum(right)
	return Entropy(parent) -
		float64(nl)/float64(n)*Entropy(left) -
		float64(nr)/float64(n)*Entropy(right)
}

func sum(counts []int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// #endregion entropy
