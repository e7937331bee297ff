// Package logging installs the dStruct log format into dragonboat's logger
// registry and gives every package a named logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

// Names of the package loggers. SetLevel configures all of them.
const (
	Store   = "store"
	Wrapper = "wrapper"
	Schema  = "schema"
	Oak     = "oak"
	Maple   = "maple"
	Metered = "metered"
	LockMgr = "lockmgr"
	CLI     = "cli"
)

var (
	names = []string{Store, Wrapper, Schema, Oak, Maple, Metered, LockMgr, CLI}

	outMu sync.RWMutex
	out   io.Writer = os.Stderr
)

func init() {
	logger.SetLoggerFactory(CreateLogger)
}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// dStructLogger implements the ILogger interface with custom formatting
type dStructLogger struct {
	name   string
	mu     sync.RWMutex
	level  logger.LogLevel
	logger *log.Logger
}

func (l *dStructLogger) SetLevel(level logger.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *dStructLogger) enabled(level logger.LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level >= level
}

func (l *dStructLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.log("DEBUG", format, args...)
	}
}

func (l *dStructLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.log("INFO", format, args...)
	}
}

func (l *dStructLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.log("WARN", format, args...)
	}
}

func (l *dStructLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.log("ERROR", format, args...)
	}
}

func (l *dStructLogger) Panicf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func (l *dStructLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-10s | %s", levelStr, l.name, message)
}

// writer forwards to the current output so SetOutput affects existing loggers
type writer struct{}

func (writer) Write(p []byte) (int, error) {
	outMu.RLock()
	defer outMu.RUnlock()
	return out.Write(p)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger is the logger.Factory used for every package logger.
// Loggers start at WARNING so library users only see problems.
func CreateLogger(pkgName string) logger.ILogger {
	return &dStructLogger{
		name:   pkgName,
		level:  logger.WARNING,
		logger: log.New(writer{}, "", log.Ldate|log.Ltime),
	}
}

// GetLogger returns the logger registered under name
func GetLogger(name string) logger.ILogger {
	return logger.GetLogger(name)
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// ParseLevel converts a level name (debug, info, warn, error) to a logger.LogLevel
func ParseLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// SetLevel sets the level of all package loggers
func SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	for _, name := range names {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}

// SetOutput redirects all package loggers to w
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
}
