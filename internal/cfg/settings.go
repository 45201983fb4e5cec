package cfg

import (
	"fmt"
	"io"
	"os"
	"strings"

	"diabetes-risk/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ConfigureLogging sets the global zerolog level and output from the
// settings. When LogFile is set, logs go to that file instead of stderr so
// that interactive terminal front-ends are not disturbed. The returned closer
// releases the log file.
func ConfigureLogging(s Settings) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if s.LogFile != "" {
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	if s.LogPretty {
		out = zerolog.ConsoleWriter{Out: out, NoColor: s.LogFile != ""}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	return closer, nil
}

// FormLogging adapts s for the terminal form, which owns stdout and stderr.
// Logs go to LogFile, or to DefaultFormLogFile when none is configured.
func FormLogging(s Settings) Settings {
	s.LogPretty = true
	if s.LogFile == "" {
		s.LogFile = common.DefaultFormLogFile
	}
	return s
}
