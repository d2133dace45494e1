package frame

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/jobscope/jobscope/internal/errors"
)

// maxLineBytes bounds a single wire record. A frame with a few hundred
// processes stays well under this.
const maxLineBytes = 1 << 20

// Encoder writes frames to a stream as newline-delimited JSON.
// Each Encode call emits exactly one self-delimited record and flushes, so
// a reader on the other end of a pipe sees whole frames promptly.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes one frame followed by a newline and flushes.
func (e *Encoder) Encode(f *Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrFrame,
			"Couldn't serialize a frame",
			"This shouldn't happen - please report this bug!")
	}
	if _, err := e.w.Write(data); err != nil {
		return err
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return err
	}
	return e.w.Flush()
}

// Decoder reads newline-delimited frames from a stream.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// Next returns the next frame on the stream.
//
// A malformed line yields an error wrapping errors.ErrFrameParse; callers
// are expected to drop the record and keep reading, since one corrupted
// frame must not cost the whole node. Stream end yields io.EOF and any
// other read failure is returned as-is; both mean the stream is done.
func (d *Decoder) Next() (*Frame, error) {
	for {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}

		line := strings.TrimSpace(d.scanner.Text())
		if line == "" {
			continue
		}

		var f Frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			return nil, errors.WrapWithCode(errors.ErrFrameParse, errors.ErrFrame,
				"Dropped a malformed frame",
				err.Error())
		}
		return &f, nil
	}
}
