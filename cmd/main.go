package main

import (
	"os"

	"github.com/soundprediction/go-graphrank/cmd/graphrank"
)

func main() {
	if err := graphrank.Execute(); err != nil {
		os.Exit(graphrank.ExitCode(err))
	}
}
