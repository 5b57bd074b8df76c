package main

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/moffa90/go-canboot/bootloader"
)

// progressReporter draws a progress bar on stderr. It does nothing when
// stderr is not a terminal, so logs stay clean in scripts.
type progressReporter struct {
	description string
	pageSize    int
	bar         *progressbar.ProgressBar
}

func newProgressReporter(description string, pageSize int) *progressReporter {
	return &progressReporter{description: description, pageSize: pageSize}
}

func (r *progressReporter) callback() bootloader.ProgressCallback {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return r.update
}

func (r *progressReporter) update(p bootloader.Progress) {
	if p.TotalPages == 0 {
		return
	}
	if r.bar == nil {
		r.bar = progressbar.NewOptions(p.TotalPages*r.pageSize,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(r.description),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = r.bar.Set(p.CurrentPage * r.pageSize)
}

// finish removes the bar so later log lines start on a clean line.
func (r *progressReporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}
