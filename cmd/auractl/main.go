// Command auractl runs the scoring pipeline offline: feature extraction,
// aura generation and digest comparison over telemetry files.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
