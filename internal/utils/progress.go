package utils

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Standard progress bar descriptions
const (
	DescBuilding  = "Building"
	DescCompiling = "Compiling"
)

// NewProgressBar creates a consistently styled progress bar.
//
// For unknown totals (total < 0) a spinner is rendered instead of a bar.
// Known totals show the count and iterations per second.
//
//	bar := utils.NewProgressBar(len(tasks), utils.DescBuilding, os.Stderr)
//	defer bar.Finish()
func NewProgressBar(total int, description string, w io.Writer) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
	}
	if w != nil {
		opts = append(opts, progressbar.OptionSetWriter(w))
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		opts = append(opts,
			progressbar.OptionShowIts(),
		)
	}

	return progressbar.NewOptions(total, opts...)
}
