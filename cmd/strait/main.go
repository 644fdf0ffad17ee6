// Command strait runs script bundles on the Strait runtime.
package main

import (
	"fmt"
	"os"

	"github.com/go-strait/strait/cmd/strait/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
