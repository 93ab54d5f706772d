package main

import (
	"flag"
	"log"

	approuters "github.com/atomhudson/allrentr-chat/internal/app_routers"
	"github.com/atomhudson/allrentr-chat/internal/configuration"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	container, err := configuration.BuildContainer(*configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	approuters.StartServer(container)
}
