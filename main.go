package main

import (
	"os"

	"github.com/TheBoringRats/ratcrowler/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
