package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxLine bounds a single input record.
const maxLine = 16 << 20

var errLineTooLong = fmt.Errorf("input line exceeds %d bytes", maxLine)

// Reader decodes one Job per input line.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64<<10)}
}

// DecodeError reports a malformed line; the stream stays usable after it.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("JSON Decode Error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Next returns the next job. Blank lines are skipped, malformed lines yield a
// *DecodeError, and the end of input yields io.EOF.
func (r *Reader) Next() (Job, error) {
	for {
		line, err := r.readLine()
		if errors.Is(err, errLineTooLong) {
			return Job{}, &DecodeError{Err: err}
		}
		if len(bytes.TrimSpace(line)) > 0 {
			var job Job
			if uerr := json.Unmarshal(line, &job); uerr != nil {
				return Job{}, &DecodeError{Err: uerr}
			}
			return job, nil
		}
		if err != nil {
			return Job{}, err
		}
	}
}

func (r *Reader) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > maxLine {
			// Drop the remainder of an oversized record.
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = r.r.ReadSlice('\n')
			}
			return nil, errLineTooLong
		}
		switch {
		case err == nil:
			return buf, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return buf, err
		}
	}
}
