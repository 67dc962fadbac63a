package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/v0xg/lookaround/internal/observability"
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	err := newApp().rootCmd().Execute()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
