package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"voxid/internal/checkpoint"
	"voxid/internal/encoder"
)

// newProgressBar returns a terminal progress bar, or nil when stderr is not
// a TTY so piped output stays clean.
func newProgressBar(total int, description string) *progressbar.ProgressBar {
	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func finishProgressBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}

// restoreNetwork rebuilds an encoder from a checkpoint envelope. The
// envelope's own dimensions drive construction, so a checkpoint trained
// under different settings still loads consistently.
func restoreNetwork(path string, seed int64) (*encoder.Network, *checkpoint.Envelope, error) {
	env, err := checkpoint.Load(path)
	if err != nil {
		return nil, nil, err
	}
	net, err := encoder.New(env.Encoder.Config, seed)
	if err != nil {
		return nil, nil, err
	}
	if err := net.LoadState(env.Encoder); err != nil {
		return nil, nil, err
	}
	return net, env, nil
}

func formatAccuracy(value float64) string {
	return fmt.Sprintf("%.4f", value)
}
