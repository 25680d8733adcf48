// Package logging sets up the process logger: a daily file under the data
// directory, optionally mirrored to the console.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options selects where log output goes
type Options struct {
	DataDir string
	Verbose bool      // mirror to Console at debug level
	Console io.Writer // defaults to os.Stderr
	Now     func() time.Time
}

// FileName returns the log file name for the given day
func FileName(day time.Time) string {
	return fmt.Sprintf("ftpfleet_%s.log", day.Format("20060102"))
}

// Setup opens today's log file and returns a logger writing to it. The
// returned closer closes the file.
func Setup(opts Options) (zerolog.Logger, io.Closer, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	logDir := filepath.Join(opts.DataDir, "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(
		filepath.Join(logDir, FileName(now())),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0600,
	)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileWriter := zerolog.LevelWriterAdapter{Writer: logFile}
	var out zerolog.LevelWriter = &minLevelWriter{LevelWriter: fileWriter, min: zerolog.InfoLevel}
	level := zerolog.InfoLevel

	if opts.Verbose {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: "15:04:05",
		})
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	// third-party code logging through the standard logger lands in the same file
	log.SetOutput(logger)
	log.SetFlags(0)

	return logger, logFile, nil
}

// minLevelWriter drops events below min, so debug output reaches the console
// without bloating the file.
type minLevelWriter struct {
	zerolog.LevelWriter
	min zerolog.Level
}

func (w *minLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < w.min {
		return len(p), nil
	}
	return w.LevelWriter.WriteLevel(l, p)
}
