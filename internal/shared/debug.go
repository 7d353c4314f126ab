package shared

import (
	"fmt"
	"os"
	"strings"
)

// DebugPrint prints debug messages when debug mode is enabled
func DebugPrint(debug bool, format string, args ...interface{}) {
	if debug {
		fmt.Printf("DEBUG: "+format+"\n", args...)
	}
}

// IsDebugMode checks if debug mode is enabled via environment variable
func IsDebugMode() bool {
	v := strings.ToLower(os.Getenv("BEATPASS_DEBUG"))
	if v == "" {
		v = strings.ToLower(os.Getenv("DEBUG"))
	}
	return v == "1" || v == "true"
}
