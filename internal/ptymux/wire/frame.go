package wire

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// A frame is one base64-encoded, newline-terminated record of
// {payload bytes, gzip bool}. Receivers must honor the per-packet gzip
// flag regardless of how they would have sent the same payload.

// gzipThreshold is the payload size above which senders compress.
const gzipThreshold = 4096

type frameRecord struct {
	payload []byte
	gzipped bool
}

func (f *frameRecord) marshal() []byte {
	var b []byte
	if len(f.payload) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, f.payload)
	}
	b = appendBool(b, 2, f.gzipped)
	return b
}

func unmarshalFrameRecord(b []byte) (*frameRecord, error) {
	f := &frameRecord{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
		var err error
		switch num {
		case 1:
			f.payload, b, err = consumeBytes(b)
		case 2:
			f.gzipped, b, err = consumeBool(b)
		default:
			b, err = skipField(b, num, typ)
		}
		return b, err
	})
	return f, err
}

// EncodeFrame wraps payload into one wire line. compress forces the gzip
// flag; use ShouldCompress for the default policy.
func EncodeFrame(payload []byte, compress bool) ([]byte, error) {
	record := frameRecord{payload: payload, gzipped: compress}
	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("wire: compress frame: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("wire: compress frame: %w", err)
		}
		record.payload = buf.Bytes()
	}
	raw := record.marshal()
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw))+1)
	base64.StdEncoding.Encode(out, raw)
	out[len(out)-1] = '\n'
	return out, nil
}

// ShouldCompress is the sender-side default for the gzip flag.
func ShouldCompress(payload []byte) bool {
	return len(payload) > gzipThreshold
}

// DecodeFrame unwraps one line produced by EncodeFrame (without the
// trailing newline).
func DecodeFrame(line []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
	n, err := base64.StdEncoding.Decode(raw, line)
	if err != nil {
		return nil, fmt.Errorf("wire: decode frame: %w", err)
	}
	record, err := unmarshalFrameRecord(raw[:n])
	if err != nil {
		return nil, err
	}
	if !record.gzipped {
		return record.payload, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(record.payload))
	if err != nil {
		return nil, fmt.Errorf("wire: decompress frame: %w", err)
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("wire: decompress frame: %w", err)
	}
	return payload, nil
}

// FrameReader yields successive decoded payloads from a line stream.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next reads one frame. io.EOF signals a clean end of stream.
func (fr *FrameReader) Next() ([]byte, error) {
	line, err := fr.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(bytes.TrimSpace(line)) > 0 {
			return DecodeFrame(bytes.TrimSpace(line))
		}
		return nil, err
	}
	return DecodeFrame(bytes.TrimSpace(line))
}

// WriteFrame encodes and writes one payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := EncodeFrame(payload, ShouldCompress(payload))
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
