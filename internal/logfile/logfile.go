// Package logfile redirects klog output to a file, while still logging to stderr.
package logfile

import (
	"flag"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"os"
	"sync"
)

var muLog sync.Mutex

// LogFile is an open log file receiving klog's output. Close it to restore the previous klog settings.
type LogFile struct {
	path     string
	file     *os.File
	previous klog.State
}

// Open creates (or truncates) the file in path and redirects klog to it.
// Log messages are also written to stderr.
//
// Only one LogFile should be open at a time.
func Open(path string) (*LogFile, error) {
	muLog.Lock()
	defer muLog.Unlock()
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create log file %q", path)
	}
	previous := klog.CaptureState()
	if err = setFlags(map[string]string{"logtostderr": "false", "alsologtostderr": "true", "one_output": "true"}); err != nil {
		_ = f.Close()
		return nil, err
	}
	klog.SetOutput(f)
	return &LogFile{path: path, file: f, previous: previous}, nil
}

// Path of the log file.
func (l *LogFile) Path() string { return l.path }

// Close flushes the log, closes the file and restores the klog settings (flags and outputs) from before Open.
func (l *LogFile) Close() error {
	muLog.Lock()
	defer muLog.Unlock()
	if l.file == nil {
		return nil
	}
	klog.Flush()
	l.previous.Restore()
	err := l.file.Close()
	l.file = nil
	return errors.Wrapf(err, "failed to close log file %q", l.path)
}

// setFlags sets klog flags through a private flag set, so it works whether or not the program
// registered klog's flags with klog.InitFlags.
func setFlags(values map[string]string) error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	for name, value := range values {
		if err := fs.Set(name, value); err != nil {
			return errors.Wrapf(err, "failed to set klog flag -%s=%s", name, value)
		}
	}
	return nil
}
