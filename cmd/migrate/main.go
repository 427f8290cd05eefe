// migrate applies or rolls back the metadata store schema.
// Usage: go run ./cmd/migrate [up|down]
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/biexec/core/config"
	"github.com/biexec/core/internal/migrate"
)

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	switch direction {
	case "up":
		err = migrate.Up(cfg.DatabaseURL)
	case "down":
		err = migrate.Down(cfg.DatabaseURL)
	default:
		log.Fatalf("unknown direction %q, want up or down", direction)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}

	fmt.Printf("migrate %s complete\n", direction)
}
