// Package logger builds the zap loggers carried by runtime contexts.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Path string `yaml:"path"`
	// If Path is a file, Mode will determine how the log file is managed.
	// FileModeAppend is the default if value is undefined.
	Mode FileMode `yaml:"mode,omitempty"`
	// Name restricts output to loggers with this name or a name beneath
	// it, e.g. "join" admits "join" and "join.grace".
	Name  string        `yaml:"name,omitempty"`
	Level zapcore.Level `yaml:"level"`
}

// DefaultConfig logs info and above to stderr.
func DefaultConfig() Config {
	return Config{Path: "stderr", Mode: FileModeAppend, Level: zapcore.InfoLevel}
}

func New(conf Config) (*zap.Logger, error) {
	core, err := NewCore(conf)
	if err != nil {
		return nil, err
	}
	return zap.New(core), nil
}

func NewCore(conf Config) (zapcore.Core, error) {
	w, err := OpenFile(conf.Path, conf.Mode)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(jsonEncoder(), w, conf.Level)
	if conf.Name != "" {
		core = newNameFilterCore(core, conf.Name)
	}
	return core, nil
}

func jsonEncoder() zapcore.Encoder {
	conf := zap.NewProductionEncoderConfig()
	conf.CallerKey = ""
	conf.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(conf)
}
