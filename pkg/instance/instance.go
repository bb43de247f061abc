package instance

import (
	"os"

	"github.com/wilffren/libronova/pkg/env"
)

const fallbackID = "libronova-0"

// ID names this process in lock ownership tokens. LIBRONOVA_INSTANCE_ID wins,
// then the platform's HOSTNAME, then the kernel hostname.
func ID() string {
	if id := env.First("", "LIBRONOVA_INSTANCE_ID", "HOSTNAME"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
