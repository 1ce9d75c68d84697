package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		if !errors.Is(err, commands.ErrRegression) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
