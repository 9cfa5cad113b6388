package vkscene

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Logger splits loader output into info, warning and error streams.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	error *log.Logger
	files []*os.File
}

const logFlags = log.Ldate | log.Ltime | log.Lshortfile

// NewLogger writes all three streams to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{
		info:  log.New(w, "INFO: ", logFlags),
		warn:  log.New(w, "WARNING: ", logFlags),
		error: log.New(w, "ERROR: ", logFlags),
	}
}

// NewFileLogger appends to info_log.txt, warn_log.txt and error_log.txt in dir.
func NewFileLogger(dir string) (*Logger, error) {
	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	}
	l := &Logger{}
	for _, name := range []string{"info_log.txt", "warn_log.txt", "error_log.txt"} {
		f, err := open(name)
		if err != nil {
			l.Close()
			return nil, errors.Wrapf(err, "opening %s", name)
		}
		l.files = append(l.files, f)
	}
	l.info = log.New(l.files[0], "INFO: ", logFlags)
	l.warn = log.New(l.files[1], "WARNING: ", logFlags)
	l.error = log.New(l.files[2], "ERROR: ", logFlags)
	return l, nil
}

// DiscardLogger drops everything.
func DiscardLogger() *Logger { return NewLogger(io.Discard) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.info.Output(2, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.warn.Output(2, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.error.Output(2, fmt.Sprintf(format, args...))
}

// Close closes the files opened by NewFileLogger.
func (l *Logger) Close() error {
	var err error
	for _, f := range l.files {
		err = errors.CombineErrors(err, f.Close())
	}
	l.files = nil
	return err
}
