package ingest

import (
	"testing"

	"github.com/fxamacker/cbor/v2"

	"lsci-map-go/internal/cborarray"
)

func TestDecodeMessageImage(t *testing.T) {
	msg := map[string]any{
		"type":       "image",
		"image_id":   7,
		"start_time": 1.25,
		"data": cbor.Tag{
			Number: cborarray.TagMultiDimArray,
			Content: []any{
				[]any{1, 2},
				cbor.Tag{
					Number:  cborarray.TagUint8,
					Content: []byte{10, 20},
				},
			},
		},
	}

	payload, err := cbor.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	raw, ok := decodeMessage(payload, 1)
	if !ok {
		t.Fatalf("decodeMessage returned ok=false")
	}

	if raw.Type != "image" {
		t.Fatalf("unexpected type: %q", raw.Type)
	}
	if raw.Image.ImageID != 7 {
		t.Fatalf("unexpected image_id: %d", raw.Image.ImageID)
	}
	if raw.Image.StartTime != 1.25 {
		t.Fatalf("unexpected start_time: %v", raw.Image.StartTime)
	}
	if raw.Image.Width != 2 || raw.Image.Height != 1 || raw.Image.Depth != 8 {
		t.Fatalf("unexpected shape: %dx%d depth %d", raw.Image.Width, raw.Image.Height, raw.Image.Depth)
	}
	if len(raw.Image.Pix) != 2 || raw.Image.Pix[0] != 10 || raw.Image.Pix[1] != 20 {
		t.Fatalf("unexpected pixels: %#v", raw.Image.Pix)
	}
}

func TestDecodeMessageSixteenBit(t *testing.T) {
	data, err := cborarray.EncodeMultiDim(2, 2, []uint16{1, 2, 3, 4000})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	payload, err := cbor.Marshal(map[string]any{
		"type":       "image",
		"image_id":   uint64(3),
		"start_time": 0.5,
		"data":       data,
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	raw, ok := decodeMessage(payload, 1)
	if !ok {
		t.Fatalf("decodeMessage returned ok=false")
	}
	if raw.Image.Depth != 16 || raw.Image.Pix[3] != 4000 {
		t.Fatalf("unexpected frame: %+v", raw.Image)
	}
}

func TestDecodeMessageStartMeta(t *testing.T) {
	payload, err := cbor.Marshal(map[string]any{
		"type":        "start",
		"width":       640,
		"height":      480,
		"frame_rate":  120.0,
		"exposure_us": 5000.0,
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	raw, ok := decodeMessage(payload, 1)
	if !ok {
		t.Fatalf("decodeMessage returned ok=false")
	}
	if raw.Type != "start" {
		t.Fatalf("unexpected type: %q", raw.Type)
	}
	if _, ok := raw.Meta["type"]; ok {
		t.Fatalf("type leaked into meta")
	}
	if raw.Meta["frame_rate"] != 120.0 {
		t.Fatalf("unexpected frame_rate: %v", raw.Meta["frame_rate"])
	}
}

func TestDecodeMessageRejectsBadPayloads(t *testing.T) {
	before := DecodeFailures()

	if _, ok := decodeMessage([]byte{0xff}, 1); ok {
		t.Fatalf("expected garbage to be rejected")
	}

	payload, _ := cbor.Marshal(map[string]any{"type": "image", "image_id": 1, "start_time": 0.0, "data": 5})
	if _, ok := decodeMessage(payload, 1); ok {
		t.Fatalf("expected image without array to be rejected")
	}

	payload, _ = cbor.Marshal(map[string]any{"type": "heartbeat"})
	if _, ok := decodeMessage(payload, 1); ok {
		t.Fatalf("expected unknown type to be ignored")
	}

	if got := DecodeFailures() - before; got != 2 {
		t.Fatalf("expected 2 decode failures, got %d", got)
	}
}
