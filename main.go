package main

import (
	"os"

	"github.com/Daylily-Informatics/UltraQC/pkg/commands"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := commands.Execute(Version); err != nil {
		os.Exit(1)
	}
}
