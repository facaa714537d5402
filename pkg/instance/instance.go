package instance

import "os"

// GetID returns the process instance identifier used in log fields. Heroku
// style dynos set DYNO; container deployments set WORKER_ID.
func GetID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	return "local"
}
