// Package env reads process environment toggles that sit outside the
// INKWELL_ config tree, such as log formatting overrides.
package env

import "os"

// Get returns the named variable, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
