package main

import (
	"os"

	"github.com/adaptive-alerting/detector-registry/registryservice"
)

func main() {
	if err := registryservice.Run(); err != nil {
		os.Exit(1)
	}
}
