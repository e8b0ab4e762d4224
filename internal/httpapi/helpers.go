package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// pathID extracts the numeric id from paths like /jobs/{id} or
// /jobs/{id}/close given the prefix and optional suffix.
func pathID(path, prefix, suffix string) (int64, bool) {
	s := strings.TrimPrefix(path, prefix)
	if suffix != "" {
		if !strings.HasSuffix(s, suffix) {
			return 0, false
		}
		s = strings.TrimSuffix(s, suffix)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pathTail returns the string segment after prefix, stripped of suffix.
func pathTail(path, prefix, suffix string) (string, bool) {
	s := strings.TrimPrefix(path, prefix)
	if suffix != "" {
		if !strings.HasSuffix(s, suffix) {
			return "", false
		}
		s = strings.TrimSuffix(s, suffix)
	}
	if s == "" || strings.Contains(s, "/") {
		return "", false
	}
	return s, true
}
