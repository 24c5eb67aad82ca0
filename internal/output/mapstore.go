package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"gonum.org/v1/gonum/mat"

	"lsci-map-go/internal/cborarray"
	"lsci-map-go/internal/types"
)

// MapExt is the extension of persisted contrast maps.
const MapExt = ".cbor"

// MapDocument is a contrast map as stored on disk.
type MapDocument struct {
	Label string
	Map   types.ContrastMap
}

type mapRecord struct {
	WindowSize int      `cbor:"window_size"`
	Center     int      `cbor:"center"`
	Label      string   `cbor:"label,omitempty"`
	Data       cbor.Tag `cbor:"data"`
}

// WriteMap stores m losslessly as CBOR with a float64 typed array payload
// and returns the file path.
func WriteMap(outputDir, name, label string, m types.ContrastMap) (string, error) {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return "", fmt.Errorf("%w: empty contrast map", types.ErrEmptyReduction)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	data := make([]float64, rows*cols)
	copy(data, m.Values())
	tag, err := cborarray.EncodeMultiDim(rows, cols, data)
	if err != nil {
		return "", err
	}
	payload, err := cbor.Marshal(mapRecord{
		WindowSize: m.WindowSize,
		Center:     m.Center,
		Label:      label,
		Data:       tag,
	})
	if err != nil {
		return "", fmt.Errorf("encode map %s: %w", name, err)
	}

	path := filepath.Join(outputDir, name+MapExt)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	return path, nil
}

// ReadMap loads a map written by WriteMap. Unreadable or malformed files
// fail with ErrIO.
func ReadMap(path string) (MapDocument, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return MapDocument{}, fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	var record map[string]any
	if err := cbor.Unmarshal(payload, &record); err != nil {
		return MapDocument{}, fmt.Errorf("%w: decode %q: %v", types.ErrIO, path, err)
	}

	arr, err := cborarray.DecodeMultiDim(record["data"])
	if err != nil {
		return MapDocument{}, fmt.Errorf("%w: %q data: %v", types.ErrIO, path, err)
	}
	if arr.Rows == 0 || arr.Cols == 0 {
		return MapDocument{}, fmt.Errorf("%w: %q holds an empty map", types.ErrIO, path)
	}
	values, err := arr.Float64s()
	if err != nil {
		return MapDocument{}, fmt.Errorf("%w: %q data: %v", types.ErrIO, path, err)
	}

	doc := MapDocument{
		Map: types.ContrastMap{
			Center: types.ReducedCenter,
			Data:   mat.NewDense(arr.Rows, arr.Cols, values),
		},
	}
	if v, ok := record["window_size"]; ok {
		if n, err := cborarray.ToInt(v); err == nil {
			doc.Map.WindowSize = n
		}
	}
	if v, ok := record["center"]; ok {
		if n, err := cborarray.ToInt(v); err == nil {
			doc.Map.Center = n
		}
	}
	doc.Label, _ = record["label"].(string)
	return doc, nil
}
