// Package main is the entry point for the csv-etl CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/liamcoop/csvetl/cmd/csv-etl/internal"
)

func main() {
	if err := internal.Run(context.Background(), os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
