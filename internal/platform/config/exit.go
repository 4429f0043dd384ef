package config

import (
	"fmt"
	"os"
)

// Exitf writes a formatted fatal message to stderr, prefixed with the service
// name, and exits with code 1.
func Exitf(service string, format string, args ...any) {
	if service != "" {
		format = service + ": " + format
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
