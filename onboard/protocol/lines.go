package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const DefaultMaxLine = 128

// LineReader splits a byte stream into newline terminated lines of bounded
// length. Over-long lines are skipped up to their newline and reported with
// ErrLineTooLong; the reader stays usable afterwards.
type LineReader struct {
	r   *bufio.Reader
	max int
}

func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &LineReader{
		r:   bufio.NewReaderSize(r, max+2), // room for the \r\n terminator
		max: max,
	}
}

// ReadLine returns the next line without its terminator. A fragment left
// unterminated when the stream ends is dropped and the read error returned.
func (l *LineReader) ReadLine() ([]byte, error) {
	line, err := l.r.ReadSlice('\n')
	switch {
	case err == nil:
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > l.max {
			return nil, ErrLineTooLong
		}
		return bytes.Clone(line), nil

	case errors.Is(err, bufio.ErrBufferFull):
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = l.r.ReadSlice('\n')
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrLineTooLong

	default:
		return nil, err
	}
}
