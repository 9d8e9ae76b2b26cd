package style

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var frames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧"}

// Spinner displays an animated spinner with a message on a TTY.
// On non-TTY writers it prints each message once and does nothing else.
type Spinner struct {
	w     io.Writer
	mu    sync.Mutex
	msg   string
	done  chan struct{}
	stop  sync.Once
	wg    sync.WaitGroup
	isTTY bool
}

// StartSpinner begins displaying an animated spinner with the given message.
// Call the returned Stop function when the operation completes.
func StartSpinner(w io.Writer, msg string) *Spinner {
	s := &Spinner{
		w:    w,
		msg:  msg,
		done: make(chan struct{}),
	}

	// Check if writer is a TTY (only animate if so).
	if f, ok := w.(*os.File); ok {
		s.isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	if !s.isTTY {
		fmt.Fprintf(w, "%s\n", msg)
		return s
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		i := 0
		for {
			select {
			case <-s.done:
				// Clear the spinner line.
				fmt.Fprintf(s.w, "\r\033[K")
				return
			default:
				s.mu.Lock()
				msg := s.msg
				s.mu.Unlock()
				frame := Dim.Render(frames[i%len(frames)])
				fmt.Fprintf(s.w, "\r\033[K%s %s", frame, msg)
				i++
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()

	return s
}

// SetMessage replaces the spinner message. Multi-phase operations use it
// to report progress without restarting the animation.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.msg = msg
	s.mu.Unlock()
	if !s.isTTY {
		fmt.Fprintf(s.w, "%s\n", msg)
	}
}

// Stop stops the spinner animation and clears the line. Safe to call
// more than once.
func (s *Spinner) Stop() {
	if !s.isTTY {
		return
	}
	s.stop.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
