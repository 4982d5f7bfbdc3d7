package main

import (
	"fmt"
	"os"

	"github.com/rulesift/rulesift/cmd/rulesift"
	"github.com/rulesift/rulesift/pkg/style"
)

func main() {
	rootCmd := rulesift.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, style.Error.Render(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}
}
