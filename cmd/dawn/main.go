package main

import (
	"fmt"
	"os"

	"github.com/teranos/dawn/cmd/dawn/commands"
	"github.com/teranos/dawn/errors"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
