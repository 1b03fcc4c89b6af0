package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PredictionKind enumerates the adverse events the engine can forecast.
type PredictionKind string

const (
	KindSystemFailure          PredictionKind = "system_failure"
	KindResourceExhaustion     PredictionKind = "resource_exhaustion"
	KindPerformanceDegradation PredictionKind = "performance_degradation"
	KindSecurityThreat         PredictionKind = "security_threat"
	KindUserBehavior           PredictionKind = "user_behavior"
	KindMaintenanceNeed        PredictionKind = "maintenance_need"
	KindCapacityPlanning       PredictionKind = "capacity_planning"
)

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so callers can compare them without string matching.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// RiskLevel is the overall classification of a ForecastReport.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type valueKind uint8

const (
	valueNone valueKind = iota
	valueNumber
	valueBool
	valueString
)

// PredictedValue is a closed union of number, bool and string.
type PredictedValue struct {
	kind valueKind
	num  float64
	b    bool
	str  string
}

// NumberValue wraps a numeric prediction.
func NumberValue(v float64) PredictedValue { return PredictedValue{kind: valueNumber, num: v} }

// BoolValue wraps a boolean prediction.
func BoolValue(v bool) PredictedValue { return PredictedValue{kind: valueBool, b: v} }

// StringValue wraps a textual prediction.
func StringValue(v string) PredictedValue { return PredictedValue{kind: valueString, str: v} }

// Number returns the numeric value and whether the union holds one.
func (v PredictedValue) Number() (float64, bool) { return v.num, v.kind == valueNumber }

// Bool returns the boolean value and whether the union holds one.
func (v PredictedValue) Bool() (bool, bool) { return v.b, v.kind == valueBool }

// Text returns the string value and whether the union holds one.
func (v PredictedValue) Text() (string, bool) { return v.str, v.kind == valueString }

// IsZero reports whether no value has been set.
func (v PredictedValue) IsZero() bool { return v.kind == valueNone }

// Interface returns the held value as a plain Go value (nil when unset).
func (v PredictedValue) Interface() any {
	switch v.kind {
	case valueNumber:
		return v.num
	case valueBool:
		return v.b
	case valueString:
		return v.str
	default:
		return nil
	}
}

func (v PredictedValue) String() string {
	switch v.kind {
	case valueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case valueBool:
		return strconv.FormatBool(v.b)
	case valueString:
		return v.str
	default:
		return ""
	}
}

// MarshalJSON encodes the held value as a bare JSON scalar.
func (v PredictedValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a bare JSON scalar into the union.
func (v *PredictedValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = PredictedValue{}
	case float64:
		*v = NumberValue(t)
	case bool:
		*v = BoolValue(t)
	case string:
		*v = StringValue(t)
	default:
		return fmt.Errorf("unsupported predicted value %s", data)
	}
	return nil
}

// PredictionResult is a single forward-looking risk assessment.
type PredictionResult struct {
	Kind                PredictionKind    `json:"kind"`
	PredictedValue      PredictedValue    `json:"predicted_value"`
	Confidence          float64           `json:"confidence"`
	TimeHorizon         float64           `json:"time_horizon_minutes"`
	Probability         float64           `json:"probability"`
	ContributingFactors []string          `json:"contributing_factors"`
	RecommendedActions  []string          `json:"recommended_actions"`
	Severity            Severity          `json:"severity"`
	CreatedAt           time.Time         `json:"created_at"`
	ModelUsed           string            `json:"model_used"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy so cached results are never shared with callers.
func (r PredictionResult) Clone() PredictionResult {
	out := r
	out.ContributingFactors = append([]string(nil), r.ContributingFactors...)
	out.RecommendedActions = append([]string(nil), r.RecommendedActions...)
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// CloneResults deep-copies a result slice.
func CloneResults(results []PredictionResult) []PredictionResult {
	if results == nil {
		return nil
	}
	out := make([]PredictionResult, len(results))
	for i, r := range results {
		out[i] = r.Clone()
	}
	return out
}

// ForecastReport aggregates every risk operation into one view.
type ForecastReport struct {
	ID                     string                    `json:"id"`
	GeneratedAt            time.Time                 `json:"generated_at"`
	SystemFailure          PredictionResult          `json:"system_failure"`
	ResourceExhaustion     []PredictionResult        `json:"resource_exhaustion"`
	PerformanceDegradation PredictionResult          `json:"performance_degradation"`
	MaintenanceNeeds       []PredictionResult        `json:"maintenance_needs"`
	OverallRisk            float64                   `json:"overall_risk"`
	RiskLevel              RiskLevel                 `json:"risk_level"`
	CriticalCount          int                       `json:"critical_predictions"`
	HighCount              int                       `json:"high_predictions"`
	PriorityActions        []string                  `json:"priority_actions"`
	Forecasts              map[string]MetricForecast `json:"forecasts,omitempty"`
}

// AllPredictions flattens the report's results in operation order.
func (r ForecastReport) AllPredictions() []PredictionResult {
	all := make([]PredictionResult, 0, 2+len(r.ResourceExhaustion)+len(r.MaintenanceNeeds))
	all = append(all, r.SystemFailure)
	all = append(all, r.ResourceExhaustion...)
	all = append(all, r.PerformanceDegradation)
	all = append(all, r.MaintenanceNeeds...)
	return all
}

// MetricForecast is a short-horizon linear projection of one metric.
type MetricForecast struct {
	Timestamps         []float64 `json:"timestamps"`
	Values             []float64 `json:"values"`
	Lower              []float64 `json:"lower"`
	Upper              []float64 `json:"upper"`
	ConfidenceInterval float64   `json:"confidence_interval"`
}
