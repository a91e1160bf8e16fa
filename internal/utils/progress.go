package utils

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Progress counts finished tasks. It draws a bar on stderr when stderr is a
// terminal and info logging is enabled, and does nothing otherwise.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress creates a Progress for total tasks.
func NewProgress(total int, description string) *Progress {
	if total < 2 || !logrus.IsLevelEnabled(logrus.InfoLevel) || !term.IsTerminal(int(os.Stderr.Fd())) {
		return &Progress{}
	}
	return &Progress{bar: newBar(os.Stderr, total, description)}
}

func newBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

// Done marks one task as finished. Safe for concurrent use.
func (p *Progress) Done() {
	if p.bar != nil {
		p.bar.Add(1)
	}
}

// Finish removes the bar.
func (p *Progress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
