package logger

import (
	"os"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

// Init configures the process-wide structured logger. Events are single JSON
// lines keyed by an event name plus arbitrary fields.
func Init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func Info(event string, fields map[string]interface{}) {
	log.Info().Fields(fields).Msg(event)
}

func Warn(event string, fields map[string]interface{}) {
	log.Warn().Fields(fields).Msg(event)
}

func Error(event string, err error, fields map[string]interface{}) {
	log.Error().Err(err).Fields(fields).Msg(event)
}

func InfoWithUser(userID, event string, fields map[string]interface{}) {
	log.Info().Str("user_id", userID).Fields(fields).Msg(event)
}

func WarnWithUser(userID, event string, fields map[string]interface{}) {
	log.Warn().Str("user_id", userID).Fields(fields).Msg(event)
}
