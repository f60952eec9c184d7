// Package agent implements the Reconciler: a supervised reconcile loop
// that projects container runtime state into registry heartbeats.
package agent

import "strings"

// parseEnv turns a container's raw "KEY=VALUE" environment lines into a
// lookup map, mirroring the original's jsonselect-over-split-on-"="
// projection.
func parseEnv(lines []string) map[string]string {
	out := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}
