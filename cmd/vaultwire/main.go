package main

import (
	"flag"
	"os"

	"github.com/vaultwire/vaultwire/relayservice"
)

func main() {
	// Optional driver flag override (memory | sqlite | postgres)
	driver := flag.String("store-driver", "", "Override VAULTWIRE_STORE_DRIVER (memory, sqlite, postgres)")
	flag.Parse()

	if *driver != "" {
		_ = os.Setenv("VAULTWIRE_STORE_DRIVER", *driver)
	}

	if err := relayservice.Run(); err != nil {
		os.Exit(1)
	}
}
