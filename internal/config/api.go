package config

import (
	"strings"
)

var (
	// APIBaseURL is the HTTP base URL of the workspace backend
	APIBaseURL = GetEnvOrDefault("WORKCHAT_API_URL", "http://localhost:8080")
)

// GetAPIBaseURL returns the configured backend base URL without a trailing slash
func GetAPIBaseURL() string {
	return strings.TrimRight(APIBaseURL, "/")
}

// GetWSBaseURL derives the WebSocket base URL from the API base URL
func GetWSBaseURL() string {
	base := GetAPIBaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// SetAPIBaseURL temporarily changes the backend base URL and returns a function to restore it
// This is primarily used for testing
func SetAPIBaseURL(url string) func() {
	previous := APIBaseURL
	APIBaseURL = url

	return func() {
		APIBaseURL = previous
	}
}
