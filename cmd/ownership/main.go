package main

import (
	"errors"
	"os"

	"github.com/Iron-Ham/ownership/internal/cmd"
	"github.com/Iron-Ham/ownership/internal/filelock"
)

// Exit code for a refused acquisition, so scripts can tell "someone else
// holds it" apart from a failure.
const exitConflict = 3

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, filelock.ErrLockConflict) {
			os.Exit(exitConflict)
		}
		os.Exit(1)
	}
}
