package observability

import "time"

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprofTrace bool
	// MetricsLogInterval periodically prints the telemetry counters. Zero
	// disables it.
	MetricsLogInterval time.Duration
}
