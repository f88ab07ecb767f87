package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"golang.org/x/term"
)

// SpinnerState is where a wait stands.
type SpinnerState int

const (
	SpinnerPending SpinnerState = iota
	SpinnerInProgress
	SpinnerSuccess
	SpinnerFailed
)

// waitFrames animates every Track line.
var waitFrames = spinner.MiniDot

// Spinner is a single status line on stderr for a blocking wait, such as
// an instance booting or sshd coming up.
type Spinner struct {
	mu      sync.Mutex
	label   string
	state   SpinnerState
	frame   int
	started time.Time
	stop    chan struct{}
	done    chan struct{}
	out     io.Writer
	animate bool
	// drawn is the rune width of the animation line on screen.
	drawn int
}

// NewSpinner returns a spinner writing to stderr. It only animates when
// stderr is a terminal; otherwise just the final line is written.
func NewSpinner(label string) *Spinner {
	return &Spinner{
		label:   label,
		out:     os.Stderr,
		animate: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Track runs fn under a spinner and finishes the line with fn's outcome.
func Track(label string, fn func() error) error {
	s := NewSpinner(label)
	s.Start()
	err := fn()
	s.Finish(err)
	return err
}

// SetOutput sends the spinner to w with animation on.
func (s *Spinner) SetOutput(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = w
	s.animate = true
}

// Start shows the line and begins animating. Starting twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.state == SpinnerInProgress {
		s.mu.Unlock()
		return
	}
	s.state = SpinnerInProgress
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.drawLocked()
	s.mu.Unlock()

	go s.spin()
}

// Finish stops the animation and writes the final line: a success mark,
// or a failure mark when err is non-nil. Finishing a spinner that never
// started does nothing.
func (s *Spinner) Finish(err error) {
	s.mu.Lock()
	if s.state != SpinnerInProgress {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	s.mu.Unlock()
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	mark := SuccessStyle().Render(SymbolComplete)
	s.state = SpinnerSuccess
	if err != nil {
		mark = ErrorStyle().Render(SymbolFail)
		s.state = SpinnerFailed
	}
	s.clearLocked()
	fmt.Fprintf(s.out, "%s %s %s\n", mark, s.label, MutedStyle().Render(formatDuration(time.Since(s.started))))
}

// State returns where the wait stands.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed is the time since Start, or zero before it.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

func (s *Spinner) spin() {
	ticker := time.NewTicker(waitFrames.FPS)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(waitFrames.Frames)
			s.drawLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) drawLocked() {
	if !s.animate {
		return
	}
	color := GradientColors[s.frame%len(GradientColors)]
	line := fmt.Sprintf("%s %s...", InfoStyle().Foreground(color).Render(waitFrames.Frames[s.frame]), s.label)
	s.clearLocked()
	fmt.Fprint(s.out, line)
	s.drawn = len([]rune(line))
}

func (s *Spinner) clearLocked() {
	if s.drawn == 0 {
		return
	}
	fmt.Fprint(s.out, "\r"+strings.Repeat(" ", s.drawn)+"\r")
	s.drawn = 0
}

// formatDuration formats a duration for display (e.g., "0.3s", "1.2s").
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
