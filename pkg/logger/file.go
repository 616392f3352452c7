package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileMode says what happens to an existing log file when a process
// opens it.
type FileMode string

const (
	FileModeAppend   FileMode = "append"
	FileModeTruncate FileMode = "truncate"
	// FileModeRotate hands the file to lumberjack, which rolls it over
	// once it passes rotateMegabytes.
	FileModeRotate FileMode = "rotate"
)

const (
	rotateMegabytes = 5
	rotateBackups   = 3
	rotateDays      = 28
)

// Set accepts the mode names of the log section of a config file.  Empty
// means append.
func (m *FileMode) Set(s string) error {
	mode := FileMode(s)
	switch mode {
	case "":
		mode = FileModeAppend
	case FileModeAppend, FileModeTruncate, FileModeRotate:
	default:
		return fmt.Errorf("unknown log file mode %q", s)
	}
	*m = mode
	return nil
}

func (m FileMode) String() string {
	return string(m)
}

func (m *FileMode) UnmarshalText(b []byte) error {
	return m.Set(string(b))
}

// OpenFile returns the sink for path.  The names "stderr" (or empty),
// "stdout" and "/dev/null" select a standard stream or discard output.
// Any other path is a file managed according to mode.
func OpenFile(path string, mode FileMode) (zapcore.WriteSyncer, error) {
	switch path {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "/dev/null":
		return zapcore.AddSync(io.Discard), nil
	}
	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case FileModeRotate:
		return rotating(path)
	case FileModeTruncate:
		flags |= os.O_TRUNC
	default:
		flags |= os.O_APPEND
	}
	return os.OpenFile(path, flags, 0644)
}

func rotating(path string) (zapcore.WriteSyncer, error) {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, err
	}
	// lumberjack serializes its own writes.
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotateMegabytes,
		MaxBackups: rotateBackups,
		MaxAge:     rotateDays,
		Compress:   true,
	}), nil
}
