// Command tts-client talks to a running tts-cache service over NATS.
package main

import (
	"fmt"
	"os"
)

func main() {
	err := newRootCmd(os.Stdin, os.Stdout).Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
