package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Spinner animates a status line on w, followed by the time elapsed
// since Start. It is meant for stderr while a command waits on the server.
type Spinner struct {
	w     io.Writer
	tick  time.Duration
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
	mu    sync.Mutex
	msg   string
	start time.Time
}

// NewSpinner creates a spinner showing message.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:    w,
		tick: 100 * time.Millisecond,
		done: make(chan struct{}),
		msg:  message,
	}
}

// SetMessage replaces the status line text.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.msg = message
	s.mu.Unlock()
}

// Start starts the animation.
func (s *Spinner) Start() {
	s.start = time.Now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.tick)
		defer t.Stop()
		for i := 0; ; i++ {
			s.draw(spinnerFrames[i%len(spinnerFrames)])
			select {
			case <-s.done:
				return
			case <-t.C:
			}
		}
	}()
}

func (s *Spinner) draw(frame rune) {
	s.mu.Lock()
	msg := s.msg
	s.mu.Unlock()
	elapsed := time.Since(s.start).Truncate(time.Second)
	fmt.Fprintf(s.w, "\r\033[K%c %s (%s)", frame, msg, elapsed)
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.finish("\r\033[K")
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	s.finish(fmt.Sprintf("\r\033[K✓ %s\n", message))
}

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	s.finish(fmt.Sprintf("\r\033[K✗ %s\n", message))
}

// finish runs once; later calls to Stop, Success or Fail are no-ops.
func (s *Spinner) finish(line string) {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		fmt.Fprint(s.w, line)
	})
}
