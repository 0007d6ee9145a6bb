package utilities

import (
	"fmt"
	"os"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, the encoding and an optional rotating file.
type Config struct {
	Level  string
	Dev    bool          // console encoding, debug level unless Level says otherwise
	File   string        // receives a copy of every entry, rotated daily
	MaxAge time.Duration // how long rotated files are kept
}

// ConfigFromEnv reads LOG_DEV, LOG_LEVEL, LOG_FILE and LOG_MAX_AGE.
func ConfigFromEnv() Config {
	cfg := Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Dev:    os.Getenv("LOG_DEV") == "1",
		File:   os.Getenv("LOG_FILE"),
		MaxAge: 7 * 24 * time.Hour,
	}
	if cfg.Level == "" && cfg.Dev {
		cfg.Level = "debug"
	}
	if d, err := time.ParseDuration(os.Getenv("LOG_MAX_AGE")); err == nil && d > 0 {
		cfg.MaxAge = d
	}
	return cfg
}

// levelFromString accepts zap's level names plus "warning". Anything else,
// including an empty name, logs at info.
func levelFromString(name string) zapcore.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Init builds the process logger. Production writes JSON lines to stdout,
// dev mode writes console lines; both tee into File when it is set.
func Init(cfg Config) (*zap.Logger, error) {
	sink, err := logSink(cfg)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(logEncoder(cfg.Dev), sink, levelFromString(cfg.Level))
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Dev {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), nil
}

func logEncoder(dev bool) zapcore.Encoder {
	if dev {
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(ec)
}

// logSink is stdout, plus a daily file named File.YYYYMMDD with File itself
// linked to the current day.
func logSink(cfg Config) (zapcore.WriteSyncer, error) {
	stdout := zapcore.Lock(os.Stdout)
	if cfg.File == "" {
		return stdout, nil
	}
	rl, err := rotatelogs.New(
		cfg.File+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(cfg.MaxAge),
	)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
	}
	return zapcore.NewMultiWriteSyncer(stdout, zapcore.AddSync(rl)), nil
}
