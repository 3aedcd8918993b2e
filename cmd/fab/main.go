package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/scibuild/fab/internal/cli"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the root command against args, writing any command output
// to outW. Pulled out of main so tests can drive it without touching
// os.Exit or the real os.Args.
func run(outW io.Writer, args []string) error {
	cmd := cli.NewRootCommand(outW)
	cmd.SetArgs(args)
	cmd.SetOut(outW)
	cmd.SetErr(outW)
	return cmd.ExecuteContext(context.Background())
}
