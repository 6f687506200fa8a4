// Command song-funnel-server runs the authoritative song funnel store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/calebmorris/go-song-funnel/internal/db"
	"github.com/calebmorris/go-song-funnel/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("please set the DATABASE_URL environment variable")
	}

	addr := os.Getenv("FUNNEL_ADDR")
	if addr == "" {
		addr = server.DefaultAddr
	}

	ctx := context.Background()

	database, err := db.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	srv, err := server.NewServer(server.ServerConfig{
		Addr:      addr,
		Store:     server.NewDBStore(database),
		JWTSecret: os.Getenv("FUNNEL_JWT_SECRET"),
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run()
}
