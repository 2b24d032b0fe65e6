// Command gameledger serves and inspects the match event ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gameledger/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gameledger:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
