package main

import (
	"fmt"
	"os"

	"beatpass-guard/cmd/bpguard/commands"
	"beatpass-guard/internal/shared"
)

func main() {
	shared.InitializeColors()

	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
