package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/apispecc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "apispecc: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
