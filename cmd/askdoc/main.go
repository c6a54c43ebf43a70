// Command askdoc is the entry point for the document Q&A assistant.
// It provides a CLI interface (via Cobra) and an HTTP server that streams
// grounded answers over ingested documents.
package main

import (
	"fmt"
	"os"

	"github.com/askdoc/askdoc-go/cmd/askdoc/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
