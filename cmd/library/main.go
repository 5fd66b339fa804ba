package main

import (
	"fmt"
	"log"

	"libraryloans/internal/app"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to start library loans service: %w", err)
	}
	return application.Run()
}
