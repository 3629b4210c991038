package main

import (
	"os"

	"macdlab/internal/labctl"
)

func main() {
	os.Exit(labctl.Run(os.Args[1:]))
}
