package tui

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ShowProgress creates a byte progress bar writing to out.
func ShowProgress(out io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// ProgressReader returns a hook that reports reads of each wrapped
// reader on out.
func ProgressReader(out io.Writer) func(r io.Reader, size int64, label string) io.Reader {
	return func(r io.Reader, size int64, label string) io.Reader {
		return io.TeeReader(r, ShowProgress(out, size, "  reading "+label))
	}
}
