// Command vcore runs component scenarios against the reconciliation
// runtime and reads recorded passes back from a SQLite journal.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vcore/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
