package logfile

import (
	"flag"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training.log")
	logFile, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, path, logFile.Path())
	klog.Infof("Message to the log file")
	require.NoError(t, logFile.Close())
	require.NoError(t, logFile.Close(), "closing twice is a no-op")

	klog.Infof("Message after closing")
	klog.Flush()
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "Message to the log file")
	require.NotContains(t, string(contents), "Message after closing")

	_, err = Open(filepath.Join(t.TempDir(), "missing", "training.log"))
	require.Error(t, err)
}

// klogFlag returns the current value of the klog flag name.
func klogFlag(t *testing.T, name string) string {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	f := fs.Lookup(name)
	require.NotNil(t, f, "klog flag -%s", name)
	return f.Value.String()
}

func TestCloseRestoresFlags(t *testing.T) {
	initial := klog.CaptureState()
	defer initial.Restore()

	// User provided flags, e.g. -logtostderr=false -log_dir=<dir>.
	logDir := t.TempDir()
	require.NoError(t, setFlags(map[string]string{"logtostderr": "false", "alsologtostderr": "false", "log_dir": logDir}))

	logFile, err := Open(filepath.Join(t.TempDir(), "training.log"))
	require.NoError(t, err)
	require.Equal(t, "true", klogFlag(t, "alsologtostderr"))
	require.NoError(t, logFile.Close())

	require.Equal(t, "false", klogFlag(t, "logtostderr"))
	require.Equal(t, "false", klogFlag(t, "alsologtostderr"))
	require.Equal(t, "false", klogFlag(t, "one_output"))
	require.Equal(t, logDir, klogFlag(t, "log_dir"))
}
