package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

func parseRecentQuery(r *http.Request) (limit int, err error) {
	limit = defaultRecentLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, errors.New("'limit' must be > 0")
		}
		if n > maxRecentLimit {
			return 0, fmt.Errorf("'limit' must be <= %d", maxRecentLimit)
		}
		limit = n
	}
	return limit, nil
}

// normalizeCommand uppercases the token and checks it against the commands
// the station firmware reacts to.
func normalizeCommand(raw string) (string, error) {
	command := strings.ToUpper(strings.TrimSpace(raw))
	switch command {
	case "ON", "OFF", "1", "0":
		return command, nil
	case "":
		return "", errors.New("missing 'command'")
	default:
		return "", fmt.Errorf("unsupported command %q (expected ON, OFF, 1 or 0)", raw)
	}
}
