package variables

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const (
	HTTP_PORT_NAME    = "HTTP_PORT"
	HTTP_PORT_DEFAULT = "5000"

	ALLOWED_ORIGINS_NAME    = "ALLOWED_ORIGINS"
	ALLOWED_ORIGINS_DEFAULT = "*"

	LOG_LEVEL_NAME    = "LOG_LEVEL"
	LOG_LEVEL_DEFAULT = "debug"

	OUTBOX_SIZE_NAME    = "OUTBOX_SIZE"
	OUTBOX_SIZE_DEFAULT = "256"

	MAX_MESSAGE_SIZE_NAME    = "MAX_MESSAGE_SIZE"
	MAX_MESSAGE_SIZE_DEFAULT = "1048576"

	PONG_WAIT_NAME    = "PONG_WAIT"
	PONG_WAIT_DEFAULT = "60s"

	WRITE_WAIT_NAME    = "WRITE_WAIT"
	WRITE_WAIT_DEFAULT = "10s"

	DRAWING_ECHO_SENDER_NAME    = "DRAWING_ECHO_SENDER"
	DRAWING_ECHO_SENDER_DEFAULT = "true"

	SYNC_STRATEGY_NAME    = "SYNC_STRATEGY"
	SYNC_STRATEGY_DEFAULT = "designated"

	SINGLE_ROOM_NAME    = "SINGLE_ROOM"
	SINGLE_ROOM_DEFAULT = "true"

	FANOUT_PARALLEL_THRESHOLD_NAME    = "FANOUT_PARALLEL_THRESHOLD"
	FANOUT_PARALLEL_THRESHOLD_DEFAULT = "64"
)

// Lookup resolves one environment variable, empty when unset.
type Lookup func(string) string

func envFrom(lookup Lookup, variableName, defaultValue string) string {
	if variable := lookup(variableName); variable != "" {
		slog.Info("env", slog.String(variableName, variable))
		return variable
	}
	slog.Info("env default", slog.String(variableName, defaultValue))
	return defaultValue
}

func ParseInt(val string) (int, error) {
	return strconv.Atoi(val)
}

func ParseBool(val string) (bool, error) {
	return strconv.ParseBool(val)
}

func ParseDuration(val string) (time.Duration, error) {
	return time.ParseDuration(val)
}

// ParseList splits a comma separated value, dropping blanks.
func ParseList(val string) []string {
	var result []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
