package main

import (
	"sma-signal/internal/cli"
)

func main() {
	cli.Execute()
}
