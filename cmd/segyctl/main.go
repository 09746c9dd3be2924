package main

import (
	"fmt"
	"os"

	"example.com/segyfix/cmd/segyctl/commands"
	"example.com/segyfix/cmd/segyctl/internal/clierr"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(clierr.ExitCodeOf(err))
	}
}
