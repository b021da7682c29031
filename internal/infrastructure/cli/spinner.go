package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/kernhell/kernhell-go/internal/infrastructure/cli/commands"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner redraws a single status line while a slow call is in flight.
type Spinner struct {
	out      io.Writer
	message  string
	interval time.Duration

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner that prints message next to the animation.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{out: w, message: message, interval: 80 * time.Millisecond}
}

// Start begins drawing. Calling Start on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.done)
}

func (s *Spinner) run(done <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		fmt.Fprintf(s.out, "\r%s %s", spinnerFrames[frame%len(spinnerFrames)], s.message)
		select {
		case <-done:
			fmt.Fprint(s.out, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// Stop clears the line and waits for the drawing goroutine to exit.
func (s *Spinner) Stop() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	s.wg.Wait()
}

type noopSpinner struct{}

func (noopSpinner) Start() {}
func (noopSpinner) Stop()  {}

// newSpinner animates only on an interactive terminal; pipes and CI logs get nothing.
func newSpinner(w io.Writer, message string) commands.Spinner {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return NewSpinner(w, message)
	}
	return noopSpinner{}
}
