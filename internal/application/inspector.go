package application

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ahrav/go-lessonforge/internal/domain"
)

// Inspector is the debug-mode hook. On a parse or validation failure it
// dumps the exact prompt and raw response and, when given an input stream,
// waits for the operator to press Enter before the lesson retries.
type Inspector struct {
	mu  sync.Mutex
	out io.Writer

	in      io.Reader
	startRd sync.Once
	resume  chan struct{}
}

// NewInspector writes dumps to out. A nil in disables pausing.
func NewInspector(out io.Writer, in io.Reader) *Inspector {
	return &Inspector{out: out, in: in, resume: make(chan struct{})}
}

// Inspection is one failure worth showing to the operator.
type Inspection struct {
	Combination domain.Combination
	Lesson      int
	Attempt     int
	Stage       domain.Stage
	Prompt      string
	Raw         string
	Err         error
}

// Inspect prints x and blocks until the operator continues or ctx ends.
// Concurrent workers are serialized so dumps never interleave.
func (i *Inspector) Inspect(ctx context.Context, x Inspection) {
	i.mu.Lock()
	defer i.mu.Unlock()

	rule := strings.Repeat("=", 72)
	fmt.Fprintf(i.out, "%s\n%s failed for %s (lesson %d, attempt %d)\nerror: %v\n",
		rule, x.Stage, x.Combination, x.Lesson, x.Attempt, x.Err)
	fmt.Fprintf(i.out, "%s\nPROMPT\n%s\n%s\n", rule, rule, x.Prompt)
	fmt.Fprintf(i.out, "%s\nRESPONSE\n%s\n%s\n%s\n", rule, rule, x.Raw, rule)

	if i.in == nil {
		return
	}
	fmt.Fprint(i.out, "press Enter to continue... ")

	i.startRd.Do(func() { go i.readLines() })
	select {
	case <-i.resume:
	case <-ctx.Done():
	}
}

// readLines turns every input line into one continue signal. It runs for
// the life of the process once the first pause happens.
func (i *Inspector) readLines() {
	sc := bufio.NewScanner(i.in)
	for sc.Scan() {
		i.resume <- struct{}{}
	}
	close(i.resume)
}
