package main

import (
	"fmt"
	"os"

	. "ely.by/mcauth/internal/cmd"
)

func main() {
	err := RootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
