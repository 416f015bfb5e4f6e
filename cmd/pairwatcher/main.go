package main

import (
	"pair-growth-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
