package executor

import (
	"bytes"
	"fmt"
	"strings"
)

const outputTruncatedFmt = "\n... output truncated (%d bytes limit) ..."

// limitedBuffer is a bytes.Buffer that stops accepting writes after a limit.
// Each buffer is written by a single os/exec copy goroutine and read after Wait.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newLimitedBuffer(limit int) *limitedBuffer {
	return &limitedBuffer{limit: limit}
}

func (lb *limitedBuffer) Write(p []byte) (n int, err error) {
	if lb.truncated {
		return len(p), nil // keep draining so the child never blocks on a full pipe
	}

	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}

	if len(p) > remaining {
		lb.truncated = true
		lb.buf.Write(p[:remaining])
		return len(p), nil
	}

	return lb.buf.Write(p)
}

// Text returns the captured bytes as valid UTF-8, with a notice if output was cut off.
func (lb *limitedBuffer) Text() string {
	s := strings.ToValidUTF8(lb.buf.String(), "�")
	if lb.truncated {
		s += fmt.Sprintf(outputTruncatedFmt, lb.limit)
	}
	return s
}
