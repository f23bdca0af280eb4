// Package progress displays per-batch progress bars, with the current losses and metrics as a postfix.
//
// Bars are only displayed if stderr is a terminal, otherwise they are no-ops.
package progress

import (
	"fmt"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"os"
	"strings"
	"time"
)

// Bar shows the progress of a loop over a known number of steps.
type Bar struct {
	description string
	bar         *progressbar.ProgressBar
	count       int
}

// Enabled reports whether progress bars are displayed.
var Enabled = term.IsTerminal(int(os.Stderr.Fd()))

// New creates a progress bar for total steps (usually batches).
// If clearOnFinish the bar is removed once finished, used for inner loops like validation.
func New(description string, total int, clearOnFinish bool) *Bar {
	b := &Bar{description: description}
	if !Enabled {
		return b
	}
	options := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("batch"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(os.Stderr) }),
	}
	if clearOnFinish {
		options = append(options, progressbar.OptionClearOnFinish())
	}
	b.bar = progressbar.NewOptions(total, options...)
	return b
}

// Count returns the number of steps completed.
func (b *Bar) Count() int { return b.count }

// Add one step, and update the postfix shown after the description.
func (b *Bar) Add(postfix string) {
	b.count++
	if b.bar == nil {
		return
	}
	if postfix != "" {
		b.bar.Describe(b.description + " " + postfix)
	}
	_ = b.bar.Add(1)
}

// Finish the progress bar.
func (b *Bar) Finish() {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
}

// Postfix formats the values of the given keys as "key=value" pairs, in the order given.
// Keys missing in values are skipped.
func Postfix(keys []string, values map[string]float64) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if value, found := values[key]; found {
			parts = append(parts, fmt.Sprintf("%s=%.4f", key, value))
		}
	}
	return strings.Join(parts, " ")
}
