// This program performs administrative tasks against a ledger stored on disk.
package main

import (
	"os"

	"github.com/ardanlabs/ledger/app/tooling/ledger/cmd"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	if err := cmd.Execute(build); err != nil {
		os.Exit(1)
	}
}
