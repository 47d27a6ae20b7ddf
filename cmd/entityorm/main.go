package main

import (
	"os"

	"github.com/conduit-lang/entityorm/internal/cli/commands"
)

func main() {
	os.Exit(commands.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
