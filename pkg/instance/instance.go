package instance

import "os"

// GetID identifies this process in logs: DYNO on the hosting platform, the
// container hostname otherwise.
func GetID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
