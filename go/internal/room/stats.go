package room

import (
	"math"
	"sort"
	"strconv"
)

// Stats holds the numeric aggregates of a vote map. Both fields are nil when
// no vote is numeric.
type Stats struct {
	Average *float64 `json:"average"`
	Median  *float64 `json:"median"`
}

// CalculateStats computes the average and median of the numeric votes,
// ignoring the special cards. Results are rounded to two decimals.
func CalculateStats(votes map[string]string) Stats {
	values := make([]float64, 0, len(votes))
	for _, v := range votes {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			continue
		}
		values = append(values, n)
	}
	if len(values) == 0 {
		return Stats{}
	}

	sort.Float64s(values)

	var sum float64
	for _, n := range values {
		sum += n
	}
	average := round2(sum / float64(len(values)))

	mid := len(values) / 2
	median := values[mid]
	if len(values)%2 == 0 {
		median = round2((values[mid-1] + values[mid]) / 2)
	}

	return Stats{Average: &average, Median: &median}
}

// FormatDistribution tallies raw vote values, special cards included. Values
// nobody picked are absent from the result.
func FormatDistribution(votes map[string]string) map[string]int {
	dist := make(map[string]int)
	for _, v := range votes {
		dist[v]++
	}
	return dist
}

// DeckOrder sorts distribution keys by their position in the deck; unknown
// values go last in lexical order.
func DeckOrder(dist map[string]int) []string {
	pos := make(map[string]int, len(Deck))
	for i, v := range Deck {
		pos[v] = i
	}

	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, iok := pos[keys[i]]
		pj, jok := pos[keys[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
