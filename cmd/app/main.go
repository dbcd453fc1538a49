// Command app runs upload.ai serving the frontend from ./frontend on disk.
package main

import (
	"log"

	"upload-ai/internal/bootstrap"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
