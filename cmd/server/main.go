package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/jainabhishek/AbhiScript/internal/config"
	httpserver "github.com/jainabhishek/AbhiScript/internal/http"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	srv, err := httpserver.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	if err := srv.Run(); err != nil {
		log.Printf("server stopped with error: %v", err)
	}

	// Let in-flight transcription runs finish before exiting.
	srv.Wait()
}
