package models

import "math"

// Statistics aggregates results over a batch.
type Statistics struct {
	Total      int              `json:"total"`
	Matched    int              `json:"matched"`
	Ambiguous  int              `json:"ambiguous"`
	Unmatched  int              `json:"unmatched"`
	ByStrategy map[Strategy]int `json:"byStrategy"`
}

// NewStatistics returns zeroed statistics with every strategy key present.
func NewStatistics() Statistics {
	by := make(map[Strategy]int, len(Strategies))
	for _, s := range Strategies {
		by[s] = 0
	}
	return Statistics{ByStrategy: by}
}

// Tally folds results into fresh statistics.
func Tally(results []MatchResult) Statistics {
	stats := NewStatistics()
	for _, r := range results {
		stats = stats.Add(r)
	}
	return stats
}

// Add returns a copy of s with r counted. The receiver is left untouched.
func (s Statistics) Add(r MatchResult) Statistics {
	next := s
	next.ByStrategy = make(map[Strategy]int, len(s.ByStrategy)+1)
	for k, v := range s.ByStrategy {
		next.ByStrategy[k] = v
	}

	next.Total++
	switch r.Status {
	case StatusMatched:
		next.Matched++
	case StatusAmbiguous:
		next.Ambiguous++
	default:
		next.Unmatched++
	}
	next.ByStrategy[r.Strategy]++
	return next
}

// Progress is reported after each completed chunk of a batch.
//
// Matched counts results that found a candidate, ambiguous ones included.
type Progress struct {
	Current   int `json:"current"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

// NewProgress derives a progress report from running statistics.
func NewProgress(stats Statistics, total int) Progress {
	p := Progress{
		Current:   stats.Total,
		Total:     total,
		Matched:   stats.Matched + stats.Ambiguous,
		Unmatched: stats.Unmatched,
		Percent:   100,
	}
	if total > 0 {
		p.Percent = int(math.Round(float64(stats.Total) / float64(total) * 100))
	}
	return p
}
