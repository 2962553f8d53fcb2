package main

import (
	"os"

	"github.com/medsage/medsage-server/consultservice"
)

func main() {
	if err := consultservice.Run(); err != nil {
		os.Exit(1)
	}
}
