package models

// Pattern is a recurring value motif found in a single metric's history.
type Pattern struct {
	Values          []float64 `json:"values"`
	Length          int       `json:"length"`
	Occurrences     []int     `json:"occurrences"`
	OccurrenceTimes []float64 `json:"occurrence_times"`
	AverageInterval float64   `json:"average_interval_seconds"`
	Confidence      float64   `json:"confidence"`
}

// LastOccurrence returns the timestamp of the most recent occurrence.
func (p Pattern) LastOccurrence() (float64, bool) {
	if len(p.OccurrenceTimes) == 0 {
		return 0, false
	}
	return p.OccurrenceTimes[len(p.OccurrenceTimes)-1], true
}
