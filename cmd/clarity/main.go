package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "clarity"}

	root.AddCommand(serveCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
