package main

import (
	"fmt"
	"os"

	"procurement/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
