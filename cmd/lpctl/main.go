package main

import (
	"github.com/livestock-import-api/internal/cli"
)

func main() {
	cli.Execute()
}
