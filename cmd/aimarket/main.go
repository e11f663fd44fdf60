package main

import (
	"log"

	"github.com/MrSnakeDoc/aimarket/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ aimarket failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ aimarket stopped: %v", err)
	}
}
