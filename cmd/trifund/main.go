package main

import (
	"os"

	"github.com/wonny/trifund/cmd/trifund/commands"
)

// main is the entry point for the trifund CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/trifund [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
