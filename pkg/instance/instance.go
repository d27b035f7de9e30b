package instance

import "os"

const envInstanceID = "COSTUMERENT_INSTANCE_ID"

// GetID identifies this process in lock owners and logs. It falls back to
// the hostname, then to a fixed name.
func GetID() string {
	if id := os.Getenv(envInstanceID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
