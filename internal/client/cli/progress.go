package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// colorReporter prints progress updates one per line. Long operations run
// sequentially, so a plain line stream reads better than a redrawn bar when
// output is piped or logged.
type colorReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *colorReporter) Progress(goal, completed int, message string) {
	if message == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := color.New(color.FgCyan).Sprintf("[%d/%d]", completed, goal)
	fmt.Fprintf(r.out, "%s %s\n", prefix, message)
}
