package transfer

import (
	"io"
	"path"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// Progress is a snapshot of a running transfer. Total is -1 when the server
// did not announce a length.
type Progress struct {
	URL        string
	Dest       string
	BytesSoFar int64
	Total      int64
	Done       bool
}

// Reporter observes transfer progress. It must not block for long; it has no
// influence on the transfer itself.
type Reporter interface {
	Report(p Progress)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(p Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

// NopReporter drops every notification.
type NopReporter struct{}

func (NopReporter) Report(Progress) {}

// LogReporter writes progress lines to the process logger.
type LogReporter struct{}

func (LogReporter) Report(p Progress) {
	log := logger.Logger()
	if p.Done {
		log.Debugf("  Completed: %s (%d KB)", path.Base(p.URL), p.BytesSoFar/1024)
		return
	}
	if p.Total > 0 {
		pct := float64(p.BytesSoFar) / float64(p.Total) * 100
		log.Infof("  Progress: %.1f%% (%d KB / %d KB)", pct, p.BytesSoFar/1024, p.Total/1024)
		return
	}
	log.Infof("  Progress: %d KB", p.BytesSoFar/1024)
}

// BarReporter renders one progress bar per transfer.
type BarReporter struct {
	out     io.Writer
	bar     *progressbar.ProgressBar
	current string
	shown   int64
}

// NewBarReporter returns a reporter drawing to out.
func NewBarReporter(out io.Writer) *BarReporter {
	return &BarReporter{out: out}
}

func (b *BarReporter) Report(p Progress) {
	if b.bar == nil || b.current != p.URL {
		b.bar = progressbar.NewOptions64(p.Total,
			progressbar.OptionSetWriter(b.out),
			progressbar.OptionSetDescription("downloading "+path.Base(p.URL)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		b.current = p.URL
		b.shown = 0
	}

	if delta := p.BytesSoFar - b.shown; delta > 0 {
		_ = b.bar.Add64(delta)
		b.shown = p.BytesSoFar
	}
	if p.Done {
		_ = b.bar.Finish()
		b.bar = nil
		b.current = ""
	}
}
