// Command prefchain resolves per-content-type editor preferences.
package main

import (
	"context"
	"os"

	"github.com/dshills/prefchain/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
