package main

import (
	"os"

	"github.com/kaselby/aleph/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
