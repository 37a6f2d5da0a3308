package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Console is a text-only speech port: lines are printed and answers are
// typed. A blank line, the timeout or the stop signal count as silence.
type Console struct {
	out     io.Writer
	timeout time.Duration
	lines   chan string
	closed  chan struct{}

	mu sync.Mutex
}

// NewConsole starts reading lines from in. Done is closed when in is exhausted.
func NewConsole(in io.Reader, out io.Writer, timeout time.Duration) *Console {
	c := &Console{
		out:     out,
		timeout: timeout,
		lines:   make(chan string),
		closed:  make(chan struct{}),
	}
	go c.read(in)
	return c
}

func (c *Console) read(in io.Reader) {
	defer close(c.closed)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
}

func (c *Console) Done() <-chan struct{} { return c.closed }

func (c *Console) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "Interviewer: %s\n", text)
	return err
}

func (c *Console) Listen(ctx context.Context, stop <-chan struct{}) (string, bool) {
	c.mu.Lock()
	fmt.Fprint(c.out, "You: ")
	c.mu.Unlock()

	var timeout <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case line := <-c.lines:
		line = strings.TrimSpace(line)
		return line, line != ""
	case <-c.closed:
		return "", false
	case <-stop:
		return "", false
	case <-timeout:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}
