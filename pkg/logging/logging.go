package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is used by both the console and the run log
const TimestampFormat = "2006-01-02 15:04:05"

// Configure applies the level and console formatter to logger.
// An unknown level falls back to info.
func Configure(logger *logrus.Logger, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
	})
}

// FileHook mirrors log entries into a plain-text file
type FileHook struct {
	mu        sync.Mutex
	w         io.WriteCloser
	formatter logrus.Formatter
}

// NewFileHook opens (appending) the log file at path
func NewFileHook(path string) (*FileHook, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return newFileHook(f), nil
}

func newFileHook(w io.WriteCloser) *FileHook {
	return &FileHook{
		w: w,
		formatter: &logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: TimestampFormat,
		},
	}
}

// Levels implements logrus.Hook
func (h *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook
func (h *FileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}

// Close closes the underlying file
func (h *FileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.w.Close()
}

// AttachFile adds a FileHook for path to logger and returns it so the caller can close it
func AttachFile(logger *logrus.Logger, path string) (*FileHook, error) {
	hook, err := NewFileHook(path)
	if err != nil {
		return nil, err
	}
	logger.AddHook(hook)
	return hook, nil
}
