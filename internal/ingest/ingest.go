// Package ingest receives frames from a camera bridge over a ZeroMQ PULL
// socket. Messages are CBOR maps:
//
//	{"type": "start", "width": <int>, "height": <int>, "frame_rate": <float>, "exposure_us": <float>, ...}
//	{"type": "image", "image_id": <int>, "start_time": <float>, "data": <tag 40 uint8|uint16 array>}
//	{"type": "end", ...}
package ingest

import (
	"context"
	"log"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"lsci-map-go/internal/cborarray"
	"lsci-map-go/internal/types"
)

// RawRecorder receives every payload before it is decoded.
type RawRecorder interface {
	Record(payload []byte) error
}

const recvTimeout = 500 * time.Millisecond

var (
	decodeFailures atomic.Uint64
	decodeCount    atomic.Uint64
	decodeNanos    atomic.Uint64
	logCounter     atomic.Uint64
)

func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

func DecodeTiming() (count, nanos uint64) {
	return decodeCount.Load(), decodeNanos.Load()
}

// Stream connects to endpoint and returns decoded messages until ctx is done.
// Only every logEvery-th receive or decode problem is logged.
func Stream(ctx context.Context, endpoint string, logEvery int, recorder RawRecorder) (<-chan types.RawMessage, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}

	out := make(chan types.RawMessage, 128)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				logEveryN(logEvery, "ingest recv error: %v", err)
				continue
			}
			if recorder != nil {
				if err := recorder.Record(msg); err != nil {
					logEveryN(logEvery, "raw log write failed: %v", err)
				}
			}

			raw, ok := decodeMessage(msg, logEvery)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- raw:
			}
		}
	}()

	return out, nil
}

func decodeMessage(msg []byte, logEvery int) (types.RawMessage, bool) {
	start := time.Now()
	defer func() {
		decodeCount.Add(1)
		decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	}()

	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		decodeFailures.Add(1)
		logEveryN(logEvery, "ingest CBOR decode error: %v", err)
		return types.RawMessage{}, false
	}

	msgType, _ := payload["type"].(string)
	switch msgType {
	case "start", "end":
		meta := make(map[string]any, len(payload))
		for k, v := range payload {
			if k != "type" {
				meta[k] = v
			}
		}
		return types.RawMessage{Type: msgType, Meta: meta}, true
	case "image":
	default:
		logEveryN(logEvery, "ingest ignoring message type %q", msgType)
		return types.RawMessage{}, false
	}

	frame, err := decodeImage(payload)
	if err != nil {
		decodeFailures.Add(1)
		logEveryN(logEvery, "ingest invalid image: %v", err)
		return types.RawMessage{}, false
	}
	return types.RawMessage{Type: "image", Image: frame}, true
}

func decodeImage(payload map[string]any) (types.RawFrame, error) {
	imageID, err := cborarray.ToInt(payload["image_id"])
	if err != nil {
		return types.RawFrame{}, err
	}
	startTime, err := cborarray.ToFloat(payload["start_time"])
	if err != nil {
		return types.RawFrame{}, err
	}
	arr, err := cborarray.DecodeMultiDim(payload["data"])
	if err != nil {
		return types.RawFrame{}, err
	}
	pix, depth, err := arr.Uint16s()
	if err != nil {
		return types.RawFrame{}, err
	}
	return types.RawFrame{
		ImageID:   imageID,
		StartTime: startTime,
		Width:     arr.Cols,
		Height:    arr.Rows,
		Depth:     depth,
		Pix:       pix,
	}, nil
}

func logEveryN(n int, format string, args ...any) {
	if logCounter.Add(1)%uint64(n) == 0 {
		log.Printf(format, args...)
	}
}
