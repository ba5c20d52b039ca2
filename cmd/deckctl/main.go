// Command deckctl is the operator tool for the deckgen API: it applies
// database migrations, fails abandoned generation tasks, inspects task
// records, and mints development bearer tokens.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
