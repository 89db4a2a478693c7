// Command seed populates the development database with fake users and
// scheduled posts.
package main

import (
	"flag"
	"log"

	"postpilot/internal/config"
	"postpilot/internal/database"
	"postpilot/internal/seed"
)

func main() {
	users := flag.Int("users", 8, "number of users to create")
	posts := flag.Int("posts", 6, "scheduled posts per user")
	keep := flag.Bool("keep", false, "keep existing data instead of clearing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Env == "production" || cfg.Env == "prod" {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := seed.DefaultOptions()
	opts.Users = *users
	opts.PostsPerUser = *posts
	opts.ClearFirst = !*keep

	if err := seed.Seed(db, opts); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
