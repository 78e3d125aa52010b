package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/repairhero/platform/apps/cli/root"
)

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
