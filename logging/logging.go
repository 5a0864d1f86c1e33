package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02 15:04:05"

// New builds the logger for a single pipeline run. It writes human-readable
// timestamped lines to both the console and a fresh file named
// <name>_<timestamp>.log under logDir. The returned closer releases the
// log file once the run is over.
//
// Each run gets its own file so the logger can be scoped to the run and
// discarded with it; there is no process-wide logger.
func New(name, logDir string) (zerolog.Logger, func() error, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "failed to create log directory %s", logDir)
	}

	stamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("%s_%s.log", strings.ToLower(name), stamp))

	file, err := os.Create(logPath)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "failed to create log file %s", logPath)
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	fileOut := zerolog.ConsoleWriter{Out: file, NoColor: true, TimeFormat: timeFormat}

	logger := zerolog.New(zerolog.MultiLevelWriter(console, fileOut)).
		With().
		Timestamp().
		Str("component", name).
		Logger()

	return logger, file.Close, nil
}
