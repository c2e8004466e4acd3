// Command worklogctl manages the daily work log from the terminal, operating
// directly on the JSON store the dashboard serves. The archive worker picks up
// CLI writes on its next reconcile pass.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
