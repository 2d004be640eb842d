// Package env collects environment-manipulation helpers, modeled on
// apptainer's internal/pkg/util/env, adapted to the filter-then-inject
// model execute (C9) needs: start from the current environment, drop a
// configurable deny list, then inject LD_* values (spec.md §4.9 step 5).
package env

import "strings"

// DefaultFilter is the list of variables stripped from the environment
// before it is handed to a container backend. These are process-identity
// variables that should
// not leak into, or be overridden unexpectedly from, the container.
var DefaultFilter = []string{
	"LD_PRELOAD",
	"LD_LIBRARY_PATH",
	"PS1",
}

// Filter returns environ with every KEY=VALUE entry whose key is in
// denylist removed, preserving order.
func Filter(environ []string, denylist []string) []string {
	deny := make(map[string]bool, len(denylist))
	for _, k := range denylist {
		deny[k] = true
	}

	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if deny[key] {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// Merge appends or overrides entries in environ with the KEY=VALUE pairs
// in overrides, returning a new slice.
func Merge(environ []string, overrides map[string]string) []string {
	idx := make(map[string]int, len(environ))
	out := append([]string{}, environ...)
	for i, kv := range out {
		if sep := strings.IndexByte(kv, '='); sep >= 0 {
			idx[kv[:sep]] = i
		}
	}
	for k, v := range overrides {
		entry := k + "=" + v
		if i, ok := idx[k]; ok {
			out[i] = entry
		} else {
			out = append(out, entry)
		}
	}
	return out
}
