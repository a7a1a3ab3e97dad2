package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/civic-flow/internal/download"
	"github.com/Veraticus/civic-flow/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

// NewProgressBar creates a counting progress bar on w.
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s...[reset]", description)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// PipelineProgress returns a pipeline.ProgressFactory drawing bars on w.
func PipelineProgress(w io.Writer) pipeline.ProgressFactory {
	return func(total int, description string) pipeline.Progress {
		return NewProgressBar(w, total, description)
	}
}

// DownloadProgress returns a download.ProgressFunc drawing byte counters on
// w. Unknown sizes render as a spinner.
func DownloadProgress(w io.Writer) download.ProgressFunc {
	return func(size int64, name string) io.Writer {
		return progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSpinnerType(14),
		)
	}
}
