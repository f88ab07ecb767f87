package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// UploadFrames are the spinner frames of the upload view.
var UploadFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

type uploadStatsMsg struct {
	files   int
	bytes   int64
	current string
}

type uploadDoneMsg struct{ failed bool }

// uploadModel is the Bubble Tea model behind UploadProgress.
type uploadModel struct {
	spinner spinner.Model
	label   string
	files   int
	bytes   int64
	current string
	start   time.Time
	done    bool
	failed  bool
}

func newUploadModel(label string) uploadModel {
	sp := spinner.New()
	sp.Spinner = UploadFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)
	return uploadModel{spinner: sp, label: label, start: time.Now()}
}

func (m uploadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m uploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case uploadStatsMsg:
		m.files, m.bytes, m.current = msg.files, msg.bytes, msg.current
		return m, nil
	case uploadDoneMsg:
		m.done, m.failed = true, msg.failed
		return m, tea.Quit
	case tea.KeyMsg:
		// The sync can't be interrupted halfway; keys are ignored.
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m uploadModel) View() string {
	if m.done {
		return m.finalLine()
	}
	stats := MutedStyle().Render(m.stats())
	line := fmt.Sprintf("%s %s %s", m.spinner.View(), m.label, stats)
	if m.current != "" {
		line += "\n  " + MutedStyle().Render(m.current)
	}
	return line
}

func (m uploadModel) stats() string {
	noun := "files"
	if m.files == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%d %s, %s", m.files, noun, FormatBytes(m.bytes))
}

func (m uploadModel) finalLine() string {
	symbol := SuccessStyle().Render(SymbolComplete)
	if m.failed {
		symbol = ErrorStyle().Render(SymbolFail)
	}
	return fmt.Sprintf("%s %s %s %s\n",
		symbol,
		m.label,
		MutedStyle().Render(m.stats()),
		MutedStyle().Render(formatDuration(time.Since(m.start))),
	)
}

// UploadProgress shows a live file and byte count while a tree is
// mirrored. On a non-terminal only the final summary line is written.
type UploadProgress struct {
	out     io.Writer
	model   uploadModel
	program *tea.Program
	done    chan struct{}
}

// NewUploadProgress creates a progress view writing to stderr.
func NewUploadProgress(label string) *UploadProgress {
	p := &UploadProgress{out: os.Stderr, model: newUploadModel(label)}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		p.program = tea.NewProgram(p.model, tea.WithOutput(os.Stderr), tea.WithInput(nil))
	}
	return p
}

// Start begins rendering.
func (p *UploadProgress) Start() {
	if p.program == nil {
		return
	}
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
}

// Update reports the running totals.
func (p *UploadProgress) Update(files int, bytes int64, current string) {
	msg := uploadStatsMsg{files: files, bytes: bytes, current: current}
	if p.program == nil {
		next, _ := p.model.Update(msg)
		p.model = next.(uploadModel)
		return
	}
	p.program.Send(msg)
}

// Finish stops rendering and prints the summary line.
func (p *UploadProgress) Finish(failed bool) {
	msg := uploadDoneMsg{failed: failed}
	if p.program == nil {
		next, _ := p.model.Update(msg)
		p.model = next.(uploadModel)
		fmt.Fprint(p.out, p.model.View())
		return
	}
	p.program.Send(msg)
	<-p.done
}

// FormatBytes formats bytes in a compact form.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1fGB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1fMB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1fKB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
