package models

// TimeSeriesData holds the ordered history of one metric. Timestamps are unix
// seconds and always run parallel to Values.
type TimeSeriesData struct {
	MetricName string            `json:"metric_name"`
	Source     string            `json:"source"`
	Timestamps []float64         `json:"timestamps"`
	Values     []float64         `json:"values"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Len returns the number of recorded samples.
func (d TimeSeriesData) Len() int {
	return len(d.Values)
}

// Last returns the newest sample.
func (d TimeSeriesData) Last() (timestamp, value float64, ok bool) {
	if len(d.Values) == 0 {
		return 0, 0, false
	}
	n := len(d.Values) - 1
	return d.Timestamps[n], d.Values[n], true
}

// Tail returns a view of the newest n samples.
func (d TimeSeriesData) Tail(n int) TimeSeriesData {
	if n <= 0 || n >= len(d.Values) {
		return d
	}
	start := len(d.Values) - n
	out := d
	out.Timestamps = d.Timestamps[start:]
	out.Values = d.Values[start:]
	return out
}
