package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"lsci-map-go/internal/types"
)

// MetricsFile is the name of the batch perfusion record.
const MetricsFile = "perfusion_metrics.json"

// WriteMetrics writes the source -> metrics record for one batch.
func WriteMetrics(outputDir string, metrics map[string]types.Metrics) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	data, err := json.MarshalIndent(metrics, "", "    ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, MetricsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	return path, nil
}

func ReadMetrics(path string) (map[string]types.Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	var metrics map[string]types.Metrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %v", types.ErrIO, path, err)
	}
	return metrics, nil
}

func NewRunID() string {
	return uuid.NewString()
}

// WriteMetadata writes meta as <ts>_<kind>_metadata.json. A run_id is added
// when meta does not carry one.
func WriteMetadata(outputDir, runTimestamp, kind string, meta map[string]any) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	normalized, _ := NormalizeJSONValue(meta).(map[string]any)
	if normalized == nil {
		normalized = map[string]any{}
	}
	if _, ok := normalized["run_id"]; !ok {
		normalized["run_id"] = NewRunID()
	}
	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("%s_%s_metadata.json", runTimestamp, kind))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	return nil
}

// NormalizeJSONValue rewrites CBOR-decoded values so encoding/json accepts
// them: maps with non-string keys become string-keyed, byte strings are
// summarized by length and tags are unwrapped.
func NormalizeJSONValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = NormalizeJSONValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = NormalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeJSONValue(item)
		}
		return out
	case []byte:
		return map[string]any{"bytes": len(v)}
	case cbor.Tag:
		return map[string]any{"tag": v.Number, "value": NormalizeJSONValue(v.Content)}
	default:
		return v
	}
}
