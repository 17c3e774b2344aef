package p2p

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameLength bounds a single frame's payload to guard against a
// malicious or corrupt length prefix triggering an oversized allocation.
const MaxFrameLength = 16 * 1024 * 1024

// WriteFrame writes a length-prefixed frame: u32_be length || payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "p2p: write frame length")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "p2p: write frame payload")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameLength {
		return nil, errors.Errorf("p2p: frame length %d exceeds maximum", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "p2p: read frame payload")
	}
	return payload, nil
}

// Compress gzips payload at the given level (1-9).
func Compress(payload []byte, level int) ([]byte, error) {
	buf := new(bytes.Buffer)
	w, err := gzip.NewWriterLevel(buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "p2p: init gzip writer")
	}
	if _, err := w.Write(payload); err != nil {
		return nil, errors.Wrap(err, "p2p: gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "p2p: gzip close")
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(payload []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "p2p: init gzip reader")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "p2p: gzip read")
	}
	return out, nil
}
