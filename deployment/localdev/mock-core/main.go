package main

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"time"
)

type seriesRequest struct {
	Source string    `json:"source"`
	Metric string    `json:"metric"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type seriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

const (
	step      = time.Minute
	maxPoints = 2000
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/predict/metrics", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req seriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Metric == "" {
			http.Error(w, "metric, start and end are required", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"series": synthesise(req)})
	})

	logger := log.New(log.Writer(), "core-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// synthesise emits one sample per minute. Disk usage creeps towards its
// ceiling, latency-like metrics carry an hourly cycle, everything else idles.
func synthesise(req seriesRequest) []seriesPoint {
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}
	start := req.Start
	if start.IsZero() || !start.Before(end) {
		start = end.Add(-time.Hour)
	}
	if end.Sub(start) > maxPoints*step {
		start = end.Add(-maxPoints * step)
	}

	var out []seriesPoint
	for i, ts := 0, start; !ts.After(end); i, ts = i+1, ts.Add(step) {
		x := float64(i)
		var v float64
		switch req.Metric {
		case "disk_usage":
			v = 60 + 0.05*x
		case "cpu_usage", "memory_usage":
			v = 45 + 10*math.Sin(2*math.Pi*x/60)
		case "response_time", "latency":
			v = 120 + 40*math.Sin(2*math.Pi*x/60)
		case "error_rate":
			v = 0.5
		default:
			v = 1
		}
		out = append(out, seriesPoint{Timestamp: ts, Value: v})
	}
	return out
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
