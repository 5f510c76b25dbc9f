package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// lineReader delivers input lines while honouring context cancellation.
// A single goroutine owns the underlying reader.
type lineReader struct {
	lines chan string
	stop  chan struct{}
	once  sync.Once
	err   error // set before lines is closed
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{
		lines: make(chan string),
		stop:  make(chan struct{}),
	}
	go lr.run(r)
	return lr
}

func (lr *lineReader) run(r io.Reader) {
	defer close(lr.lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case lr.lines <- strings.TrimRight(sc.Text(), "\r"):
		case <-lr.stop:
			return
		}
	}
	lr.err = sc.Err()
}

// ReadLine blocks until a line is available, the input ends (io.EOF) or ctx
// is done.
func (lr *lineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lr.lines:
		if !ok {
			if lr.err != nil {
				return "", lr.err
			}
			return "", io.EOF
		}
		return line, nil
	}
}

// Close releases the reading goroutine if it is waiting to deliver a line.
func (lr *lineReader) Close() {
	lr.once.Do(func() { close(lr.stop) })
}
