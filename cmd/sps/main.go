// Command sps is the hierarchical task planner CLI.
package main

import (
	"os"

	"github.com/wadevries/sps/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
