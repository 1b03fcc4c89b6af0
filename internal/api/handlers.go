package api

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-predict/internal/models"
	"github.com/miradorstack/mirador-predict/internal/utils"
)

// DataPointRequest is the decoded AddDataPoint payload.
type DataPointRequest struct {
	Metric    string
	Value     float64
	Timestamp time.Time
	Metadata  map[string]string
}

// TrainingRequest is the decoded TrainModel payload.
type TrainingRequest struct {
	Model  string
	Rows   [][]float64
	Labels []float64
}

// FromProtoMetricMap reads the "metrics" object of a prediction request.
func FromProtoMetricMap(req *structpb.Struct) (models.MetricMap, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	raw, ok := req.GetFields()["metrics"]
	if !ok {
		return nil, fmt.Errorf("metrics is required")
	}
	obj := raw.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("metrics must be an object")
	}
	out := make(models.MetricMap, len(obj.GetFields()))
	for name, v := range obj.GetFields() {
		num, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("metrics.%s must be a number", name)
		}
		out[name] = num.NumberValue
	}
	return out, nil
}

// FromProtoDataPoint decodes an AddDataPoint request. The timestamp may be
// RFC 3339 text or unix seconds; when absent the server clock is used.
func FromProtoDataPoint(req *structpb.Struct) (DataPointRequest, error) {
	if req == nil {
		return DataPointRequest{}, fmt.Errorf("request is nil")
	}
	fields := req.GetFields()

	metric := fields["metric"].GetStringValue()
	if metric == "" {
		return DataPointRequest{}, fmt.Errorf("metric is required")
	}
	value, ok := fields["value"].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return DataPointRequest{}, fmt.Errorf("value must be a number")
	}

	dp := DataPointRequest{Metric: metric, Value: value.NumberValue}
	if ts, ok := fields["timestamp"]; ok {
		switch kind := ts.GetKind().(type) {
		case *structpb.Value_NumberValue:
			dp.Timestamp = utils.FromUnixSeconds(kind.NumberValue)
		case *structpb.Value_StringValue:
			parsed, err := time.Parse(time.RFC3339Nano, kind.StringValue)
			if err != nil {
				return DataPointRequest{}, fmt.Errorf("timestamp: %w", err)
			}
			dp.Timestamp = parsed
		default:
			return DataPointRequest{}, fmt.Errorf("timestamp must be RFC 3339 text or unix seconds")
		}
	}
	if raw, ok := fields["metadata"]; ok {
		meta := raw.GetStructValue()
		if meta == nil {
			return DataPointRequest{}, fmt.Errorf("metadata must be an object of strings")
		}
		dp.Metadata = make(map[string]string, len(meta.GetFields()))
		for k, v := range meta.GetFields() {
			text, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return DataPointRequest{}, fmt.Errorf("metadata %q must be a string", k)
			}
			dp.Metadata[k] = text.StringValue
		}
	}
	return dp, nil
}

// FromProtoTrainingRequest decodes a TrainModel request. labels may be
// omitted for anomaly models.
func FromProtoTrainingRequest(req *structpb.Struct) (TrainingRequest, error) {
	if req == nil {
		return TrainingRequest{}, fmt.Errorf("request is nil")
	}
	fields := req.GetFields()
	out := TrainingRequest{Model: fields["model"].GetStringValue()}
	if out.Model == "" {
		return TrainingRequest{}, fmt.Errorf("model is required")
	}

	rows := fields["rows"].GetListValue()
	if rows == nil {
		return TrainingRequest{}, fmt.Errorf("rows must be a list")
	}
	for i, row := range rows.GetValues() {
		values, err := numbers(row.GetListValue())
		if err != nil {
			return TrainingRequest{}, fmt.Errorf("rows[%d]: %w", i, err)
		}
		out.Rows = append(out.Rows, values)
	}
	if raw, ok := fields["labels"]; ok {
		labels, err := numbers(raw.GetListValue())
		if err != nil {
			return TrainingRequest{}, fmt.Errorf("labels: %w", err)
		}
		out.Labels = labels
	}
	return out, nil
}

func numbers(list *structpb.ListValue) ([]float64, error) {
	if list == nil {
		return nil, fmt.Errorf("expected a list of numbers")
	}
	out := make([]float64, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		num, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out = append(out, num.NumberValue)
	}
	return out, nil
}

// ToProtoPrediction converts a domain result into a Struct document.
func ToProtoPrediction(res models.PredictionResult) (*structpb.Struct, error) {
	return structpb.NewStruct(predictionFields(res))
}

// ToProtoPredictions wraps a result list as {"predictions": [...]}.
func ToProtoPredictions(results []models.PredictionResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"predictions": predictionList(results)})
}

// ToProtoForecastReport converts a comprehensive forecast.
func ToProtoForecastReport(report models.ForecastReport) (*structpb.Struct, error) {
	forecasts := make(map[string]any, len(report.Forecasts))
	for metric, f := range report.Forecasts {
		forecasts[metric] = map[string]any{
			"timestamps":          floatList(f.Timestamps),
			"values":              floatList(f.Values),
			"lower":               floatList(f.Lower),
			"upper":               floatList(f.Upper),
			"confidence_interval": finite(f.ConfidenceInterval),
		}
	}
	return structpb.NewStruct(map[string]any{
		"id":                      report.ID,
		"generated_at":            report.GeneratedAt.UTC().Format(time.RFC3339Nano),
		"system_failure":          predictionFields(report.SystemFailure),
		"resource_exhaustion":     predictionList(report.ResourceExhaustion),
		"performance_degradation": predictionFields(report.PerformanceDegradation),
		"maintenance_needs":       predictionList(report.MaintenanceNeeds),
		"overall_risk":            report.OverallRisk,
		"risk_level":              string(report.RiskLevel),
		"critical_predictions":    report.CriticalCount,
		"high_predictions":        report.HighCount,
		"priority_actions":        stringList(report.PriorityActions),
		"forecasts":               forecasts,
	})
}

func predictionFields(res models.PredictionResult) map[string]any {
	meta := make(map[string]any, len(res.Metadata))
	for k, v := range res.Metadata {
		meta[k] = v
	}
	return map[string]any{
		"kind":                 string(res.Kind),
		"predicted_value":      res.PredictedValue.Interface(),
		"confidence":           res.Confidence,
		"time_horizon_minutes": res.TimeHorizon,
		"probability":          res.Probability,
		"contributing_factors": stringList(res.ContributingFactors),
		"recommended_actions":  stringList(res.RecommendedActions),
		"severity":             string(res.Severity),
		"created_at":           res.CreatedAt.UTC().Format(time.RFC3339Nano),
		"model_used":           res.ModelUsed,
		"metadata":             meta,
	}
}

func predictionList(results []models.PredictionResult) []any {
	out := make([]any, 0, len(results))
	for _, r := range results {
		out = append(out, predictionFields(r))
	}
	return out
}

func stringList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

// floatList drops to zero any non-finite entries; JSON cannot carry them.
func floatList(values []float64) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, finite(v))
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
