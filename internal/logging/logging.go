package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/saltyorg/flowcharts/internal/config"
)

// FileName is the log file created next to the database when no explicit
// path is given.
const FileName = "flowcharts.log"

const timeFormat = "2006-01-02 15:04:05"

// Options controls how much the service logs and where the log file goes.
type Options struct {
	// Verbosity is the -v count: 0 info, 1 debug, 2 or more trace.
	Verbosity int
	// FilePath overrides the log file location.
	FilePath string
	// DBPath places the log file in the database's directory when FilePath is empty.
	DBPath string
}

// rotation holds the lumberjack limits, overridable through FLOWCHARTS_LOG_* settings.
type rotation struct {
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	compress   bool
}

var defaultRotation = rotation{
	maxSizeMB:  50,
	maxBackups: 5,
	maxAgeDays: 30,
	compress:   true,
}

// Setup installs the global logger: colored console output plus a plain-text
// rotating file. It returns the file writer so the caller can close it on
// exit, or nil if the log directory could not be created.
func Setup(opts Options, loader *config.Loader) io.Closer {
	zerolog.SetGlobalLevel(Level(opts.Verbosity))

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	log.Logger = zerolog.New(console).With().Timestamp().Logger()

	path := opts.logFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to prepare log directory; logging to console only")
		return nil
	}

	rot := loadRotation(loader)
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rot.maxSizeMB,
		MaxBackups: rot.maxBackups,
		MaxAge:     rot.maxAgeDays,
		Compress:   rot.compress,
	}

	plain := zerolog.ConsoleWriter{Out: file, TimeFormat: timeFormat, NoColor: true}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, plain)).With().Timestamp().Logger()

	log.Debug().Str("path", path).Str("level", zerolog.GlobalLevel().String()).Msg("Logging configured")
	return file
}

// Level maps the -v count to a zerolog level.
func Level(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.InfoLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func (o Options) logFile() string {
	if o.FilePath != "" {
		return o.FilePath
	}
	if o.DBPath == "" {
		return FileName
	}
	dir := filepath.Dir(o.DBPath)
	if abs, err := filepath.Abs(o.DBPath); err == nil {
		dir = filepath.Dir(abs)
	}
	return filepath.Join(dir, FileName)
}

func loadRotation(loader *config.Loader) rotation {
	rot := defaultRotation
	if loader == nil {
		return rot
	}

	// Non-positive sizes fall back to the default; zero backups or age keeps everything.
	if v := loader.Int("log.max_size_mb", rot.maxSizeMB); v > 0 {
		rot.maxSizeMB = v
	}
	if v := loader.Int("log.max_backups", rot.maxBackups); v >= 0 {
		rot.maxBackups = v
	}
	if v := loader.Int("log.max_age_days", rot.maxAgeDays); v >= 0 {
		rot.maxAgeDays = v
	}
	rot.compress = loader.Bool("log.compress", rot.compress)
	return rot
}
