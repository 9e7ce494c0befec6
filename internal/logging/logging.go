package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// StreamTag identifies which subprocess stream a line came from.
type StreamTag string

const (
	// StreamStdout tags a line read from a child process's stdout.
	StreamStdout StreamTag = "STDOUT"
	// StreamStderr tags a line read from a child process's stderr.
	StreamStderr StreamTag = "STDERR"
)

// StreamLog is the stream.log sink: every surviving subprocess line,
// tagged by stream, with no level filtering. The process runner (C1) is
// the only writer.
type StreamLog struct {
	logger   *log.Logger
	file     *os.File
	filePath string
}

// NewStreamLog opens `<dir>/stream.log` for appending.
func NewStreamLog(dir string) (*StreamLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "stream.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	return &StreamLog{
		logger:   log.New(file, "", log.LstdFlags),
		file:     file,
		filePath: path,
	}, nil
}

// Close closes the log file.
func (s *StreamLog) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// FilePath returns the path to the log file.
func (s *StreamLog) FilePath() string {
	if s == nil {
		return ""
	}
	return s.filePath
}

// Command logs the argument vector of a subprocess invocation, bracketed
// by a dashed separator so individual runs are easy to scan.
func (s *StreamLog) Command(argv []string) {
	if s == nil {
		return
	}
	s.logger.Print("------")
	s.logger.Printf("command: %v", argv)
}

// Line records one surviving subprocess line tagged by stream.
func (s *StreamLog) Line(tag StreamTag, text string) {
	if s == nil {
		return
	}
	s.logger.Printf("[%s] %s", tag, text)
}
