// Command audiora is the entry point for the Audiora lyric learning server.
package main

import (
	"fmt"
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "audiora: %v\n", err)
		os.Exit(1)
	}
}
