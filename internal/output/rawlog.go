package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RawLogMagic opens every raw ingest log. Each record that follows is an
// 8-byte little-endian unix-nano timestamp, a 4-byte little-endian length
// and the CBOR payload.
const RawLogMagic = "LSCIRAW1"

// MaxRawRecordSize bounds a single record so a corrupt length field cannot
// force a huge allocation.
const MaxRawRecordSize = 256 << 20

// RawLogWriter appends raw ingest messages to a log file. It is safe for
// concurrent use.
type RawLogWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func NewRawLogWriter(outputDir string, prefix string) (*RawLogWriter, error) {
	return newRawLogWriter(outputDir, prefix, time.Now())
}

func newRawLogWriter(outputDir, prefix string, now time.Time) (*RawLogWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	timestamp := now.Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.bin", timestamp, prefix))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(RawLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &RawLogWriter{
		f: f,
		w: w,
	}, nil
}

func (r *RawLogWriter) Path() string {
	return r.f.Name()
}

func (r *RawLogWriter) Record(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("raw log writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *RawLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.w = nil
		return err
	}
	err := r.f.Close()
	r.w = nil
	return err
}

type RawRecord struct {
	Timestamp time.Time
	Payload   []byte
}

// ReadRawLog checks the magic of r and calls fn for every record until EOF
// or until fn returns an error. A truncated trailing record ends the read
// silently.
func ReadRawLog(r io.Reader, fn func(RawRecord) error) error {
	header := make([]byte, len(RawLogMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(header) != RawLogMagic {
		return fmt.Errorf("unexpected rawlog magic %q", string(header))
	}

	for {
		var meta [12]byte
		if _, err := io.ReadFull(r, meta[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("read record header: %w", err)
		}
		ts := int64(binary.LittleEndian.Uint64(meta[:8]))
		size := binary.LittleEndian.Uint32(meta[8:12])
		if size > MaxRawRecordSize {
			return fmt.Errorf("record of %d bytes exceeds %d", size, MaxRawRecordSize)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("read payload: %w", err)
		}
		if err := fn(RawRecord{Timestamp: time.Unix(0, ts), Payload: payload}); err != nil {
			return err
		}
	}
}
