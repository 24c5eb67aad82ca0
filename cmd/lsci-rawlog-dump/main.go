package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"lsci-map-go/internal/cborarray"
	"lsci-map-go/internal/output"
)

var errLimit = errors.New("limit reached")

func main() {
	var (
		path    = flag.String("path", "", "Path to rawlog .bin file")
		limit   = flag.Int("limit", 1, "Number of records to dump (0 for all)")
		summary = flag.Bool("summary", false, "Print one line per record instead of full JSON")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	counts, err := dump(f, os.Stdout, *limit, *summary)
	if err != nil {
		log.Fatalf("dump rawlog: %v", err)
	}
	if *summary {
		fmt.Printf("summary: start=%d image=%d end=%d other=%d\n",
			counts["start"], counts["image"], counts["end"], counts["other"])
	}
}

// dump writes up to limit records of r to w and returns the number of
// records seen per message type.
func dump(r io.Reader, w io.Writer, limit int, summary bool) (map[string]int, error) {
	counts := map[string]int{}
	count := 0
	err := output.ReadRawLog(r, func(rec output.RawRecord) error {
		if limit > 0 && count >= limit {
			return errLimit
		}
		defer func() { count++ }()

		if len(rec.Payload) == 0 {
			log.Printf("record %d: empty payload", count)
			return nil
		}
		var decoded any
		if err := cbor.Unmarshal(rec.Payload, &decoded); err != nil {
			log.Printf("record %d: CBOR decode error: %v", count, err)
			return nil
		}
		normalized := output.NormalizeJSONValue(decoded)

		msgType := "other"
		if m, ok := normalized.(map[string]any); ok {
			if t, ok := m["type"].(string); ok && (t == "start" || t == "image" || t == "end") {
				msgType = t
			}
		}
		counts[msgType]++

		if summary {
			_, err := fmt.Fprintf(w, "record %d %s %s %s\n", count,
				rec.Timestamp.Format(time.RFC3339Nano), msgType, describe(decoded))
			return err
		}

		pretty, err := json.MarshalIndent(normalized, "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", count, err)
			return nil
		}
		log.Printf("record %d timestamp=%s size=%d", count, rec.Timestamp.Format(time.RFC3339Nano), len(rec.Payload))
		_, err = fmt.Fprintln(w, string(pretty))
		return err
	})
	if errors.Is(err, errLimit) {
		err = nil
	}
	return counts, err
}

func describe(decoded any) string {
	m, ok := decoded.(map[any]any)
	if !ok {
		return fmt.Sprintf("type %T", decoded)
	}
	data, ok := m["data"]
	if !ok {
		return fmt.Sprintf("%d fields", len(m))
	}
	arr, err := cborarray.DecodeMultiDim(data)
	if err != nil {
		return fmt.Sprintf("image_id=%v data: %v", m["image_id"], err)
	}
	return fmt.Sprintf("image_id=%v dims=%dx%d %T", m["image_id"], arr.Rows, arr.Cols, arr.Data)
}
