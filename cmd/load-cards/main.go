package main

import (
	"flag"
	"log"

	"cards-chaos/internal/config"
	"cards-chaos/internal/db"
)

func main() {
	filePath := flag.String("file", "cards.csv", "path to cards csv (pack_id,pack_name,type,text)")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	loaded, err := db.LoadCardPacks(conn, *filePath)
	if err != nil {
		log.Fatalf("failed to load cards after %d rows: %v", loaded, err)
	}
	log.Printf("loaded %d cards from %s", loaded, *filePath)
}
