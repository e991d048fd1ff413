package main

import (
	"log"

	"github.com/smartstudy/platform-api/internal/app"
)

// @title Smart Study Platform API
// @version 1.0.0
// @description Note sharing platform for teachers and students
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	if err := a.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
