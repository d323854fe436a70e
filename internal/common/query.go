package common

import (
	"net/http"
	"strconv"
	"strings"
)

// QueryInt reads an integer query parameter, returning def when it is absent or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
