package console

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestLineReader(t *testing.T) {
	lr := newLineReader(strings.NewReader("one\r\ntwo\n\nthree"))
	defer lr.Close()

	ctx := context.Background()
	for _, want := range []string{"one", "two", "", "three"} {
		got, err := lr.ReadLine(ctx)
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if got != want {
			t.Errorf("ReadLine = %q, want %q", got, want)
		}
	}
	if _, err := lr.ReadLine(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLineReader_Cancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	lr := newLineReader(pr)
	defer lr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := lr.ReadLine(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
