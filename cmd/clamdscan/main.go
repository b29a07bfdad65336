// Command clamdscan scans files with a clamd daemon over the INSTREAM protocol.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/DevHatRo/clamd-go/cmd/clamdscan/commands"
)

func main() {
	err := commands.Execute()
	if err == nil {
		return
	}

	var exitErr *commands.ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(commands.ExitCode(err))
}
