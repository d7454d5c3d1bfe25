package main

import (
	"errors"
	"fmt"
	"os"
)

// ExitError carries the process exit code of a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func main() {
	os.Exit(run())
}

// run executes the root command and maps its error to an exit code.
// Panics are reported instead of crashing with a trace.
func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "Ein Fehler ist aufgetreten:", r)
			code = 1
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}
