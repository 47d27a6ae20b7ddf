package ui

import (
	"sort"
	"strings"
)

const (
	maxDistance    = 2
	maxSuggestions = 3
)

// SimilarNames returns up to three candidates within an edit distance of
// two from target, closest first, ignoring case
func SimilarNames(target string, candidates []string) []string {
	type match struct {
		name     string
		distance int
	}
	var matches []match
	for _, candidate := range candidates {
		distance := LevenshteinDistance(strings.ToLower(target), strings.ToLower(candidate))
		if distance <= maxDistance {
			matches = append(matches, match{name: candidate, distance: distance})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	var result []string
	for i := 0; i < len(matches) && i < maxSuggestions; i++ {
		result = append(result, matches[i].name)
	}
	return result
}

// LevenshteinDistance returns the minimum number of single byte insertions,
// deletions or substitutions turning s1 into s2
func LevenshteinDistance(s1, s2 string) int {
	previous := make([]int, len(s2)+1)
	current := make([]int, len(s2)+1)
	for j := range previous {
		previous[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		current[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, current[j-1]+1, previous[j-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(s2)]
}
