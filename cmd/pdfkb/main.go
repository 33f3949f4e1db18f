// Command pdfkb builds and searches a knowledge base from a folder of PDFs.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/pdfkb/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.Execute(context.Background(), version); err != nil {
		os.Exit(1)
	}
}
