// Command trackctl exports stored tracks and manages broker users.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tbourn/go-location-broker/internal/cli"
)

func main() {
	if err := cli.RunCLI("trackctl", os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var usage cli.UsageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, usage.Error())
			for _, line := range usage.UsageLines() {
				fmt.Fprintln(os.Stderr, line)
			}
			os.Exit(2)
		}
		os.Exit(1)
	}
}
