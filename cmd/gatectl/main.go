// Package main is the entry point for the gatectl binary.
package main

import (
	"os"

	"github.com/sseshaheen/sheenapps-query-gateway/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
