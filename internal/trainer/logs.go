package trainer

import (
	"encoding/csv"
	"github.com/janpfeifer/segan/internal/config"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVColumns of the metrics file, one row per epoch.
var CSVColumns = []string{
	"epoch", "train_g_loss", "train_d_loss", "val_loss", "val_d_loss",
	"mean_iou", "recall", "precision", "accuracy", "dice", "f2",
	"train_mean_iou", "train_precision", "train_recall", "train_f2", "train_accuracy", "train_dice",
}

// csvLogger appends one row per epoch to the metrics CSV file.
type csvLogger struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// newCSVLogger creates the file in path and writes the header.
func newCSVLogger(path string) (*csvLogger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create metrics file %q", path)
	}
	l := &csvLogger{path: path, file: f, writer: csv.NewWriter(f)}
	if err = l.writeRow(CSVColumns); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

func (l *csvLogger) writeRow(row []string) error {
	if err := l.writer.Write(row); err != nil {
		return errors.Wrapf(err, "failed to write to metrics file %q", l.path)
	}
	l.writer.Flush()
	return errors.Wrapf(l.writer.Error(), "failed to write to metrics file %q", l.path)
}

// Write the row of an epoch.
func (l *csvLogger) Write(epoch int, trainResults, valResults *EpochResults) error {
	values := map[string]float64{
		"train_g_loss": trainResults.GeneratorLoss,
		"train_d_loss": trainResults.DiscriminatorLoss,
		"val_loss":     valResults.GeneratorLoss,
		"val_d_loss":   valResults.DiscriminatorLoss,
	}
	for name, value := range valResults.Metrics {
		values[name] = value
	}
	for name, value := range trainResults.Metrics {
		values["train_"+name] = value
	}
	row := make([]string, len(CSVColumns))
	row[0] = strconv.Itoa(epoch)
	for ii, column := range CSVColumns[1:] {
		row[ii+1] = strconv.FormatFloat(values[column], 'f', 6, 64)
	}
	return l.writeRow(row)
}

// Close the file.
func (l *csvLogger) Close() error {
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		_ = l.file.Close()
		return errors.Wrapf(err, "failed to flush metrics file %q", l.path)
	}
	return errors.Wrapf(l.file.Close(), "failed to close metrics file %q", l.path)
}

// RunInfo is the metadata of a training run, saved as run.yaml in the log directory.
type RunInfo struct {
	RunID             string         `yaml:"run_id"`
	Names             string         `yaml:"names,omitempty"`
	StartedAt         time.Time      `yaml:"started_at"`
	Model             string         `yaml:"model"`
	TrainDataset      string         `yaml:"train_dataset"`
	TrainSamples      int            `yaml:"train_samples"`
	ValidationSamples int            `yaml:"validation_samples"`
	Config            *config.Config `yaml:"config"`
}

func (t *Trainer) writeRunInfo() error {
	info := &RunInfo{
		RunID:             t.runID,
		Names:             t.names,
		StartedAt:         time.Now(),
		Model:             t.model.String(),
		TrainDataset:      t.trainData.Name,
		TrainSamples:      t.trainData.Len(),
		ValidationSamples: t.valData.Len(),
		Config:            t.cfg,
	}
	contents, err := yaml.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "failed to serialize run information")
	}
	path := filepath.Join(t.logDir, "run.yaml")
	return errors.Wrapf(os.WriteFile(path, contents, 0o644), "failed to write run information to %q", path)
}

// ReadMetricsCSV reads a metrics file written during training, returning one map of column to value per epoch.
func ReadMetricsCSV(path string) ([]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open metrics file %q", path)
	}
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read metrics file %q", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("metrics file %q is empty", path)
	}
	header := records[0]
	epochs := make([]map[string]float64, 0, len(records)-1)
	for lineNum, record := range records[1:] {
		values := make(map[string]float64, len(header))
		for ii, column := range header {
			values[column], err = strconv.ParseFloat(record[ii], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "metrics file %q, line %d, column %q", path, lineNum+2, column)
			}
		}
		epochs = append(epochs, values)
	}
	return epochs, nil
}
