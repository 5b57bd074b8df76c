package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// cliLogger implements bootloader.Logger on a logrus logger. Key-value
// pairs become logrus fields.
type cliLogger struct {
	log *log.Logger
}

func newCLILogger(w io.Writer, verbose, colors bool) *cliLogger {
	l := log.New()
	l.SetOutput(w)
	l.SetFormatter(&log.TextFormatter{
		ForceColors:     colors,
		DisableColors:   !colors,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	l.SetLevel(log.InfoLevel)
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	return &cliLogger{log: l}
}

// stderrColors reports whether stderr is a terminal that accepts colour.
func stderrColors() bool {
	return !color.NoColor && term.IsTerminal(int(os.Stderr.Fd()))
}

func (l *cliLogger) Debug(msg string, kv ...interface{}) {
	l.with(kv).Debug(msg)
}

func (l *cliLogger) Info(msg string, kv ...interface{}) {
	l.with(kv).Info(msg)
}

func (l *cliLogger) Error(msg string, kv ...interface{}) {
	l.with(kv).Error(msg)
}

// with turns key-value pairs into an entry. An odd trailing value is logged
// under the key "extra".
func (l *cliLogger) with(kv []interface{}) *log.Entry {
	fields := make(log.Fields, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fields[fmt.Sprint(kv[i])] = kv[i+1]
		} else {
			fields["extra"] = kv[i]
		}
	}
	return l.log.WithFields(fields)
}
