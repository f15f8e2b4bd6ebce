package main

import (
	"fmt"
	"os"

	"github.com/stratastor/dropboxd/cmd"
	"github.com/stratastor/dropboxd/pkg/errors"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps authorization failures to 255; everything else is a
// generic 1.
func exitCode(err error) int {
	if code, ok := errors.GetCode(err); ok {
		switch code {
		case errors.AuthRejected, errors.AuthWaiting, errors.AuthFailure:
			return 255
		}
	}
	return 1
}
