package main

import (
	"fmt"
	"os"

	"github.com/kubilitics/kubilitics-thermal/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "thermal:", err)
		os.Exit(1)
	}
}
