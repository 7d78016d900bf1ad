package main

import (
	"fmt"
	"os"
)

func main() {
	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	if err := newRootCmd(wiring).Execute(); err != nil {
		fmt.Fprintf(wiring.stderr, "cockpit error: %v\n", err)
		os.Exit(1)
	}
}
