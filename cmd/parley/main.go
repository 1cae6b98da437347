package main

import (
	"fmt"
	"os"

	"parley/internal/cli"
	"parley/pkg/logger"
)

func main() {
	rootCmd := cli.NewRootCmd()

	err := rootCmd.Execute()
	if closeErr := logger.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
