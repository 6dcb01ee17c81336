package main

import (
	"fmt"
	"os"

	"github.com/titpetric/cli"
)

func main() {
	if err := start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func start() error {
	app := cli.NewApp("ramble")
	app.AddCommand("setup", "Expand experiments and materialize run directories", Setup)
	app.AddCommand("analyze", "Scan experiment logs and report figures of merit", Analyze)

	app.DefaultCommand = "setup"

	return app.Run()
}
