// Command song-funnel runs the local funnel client. It loads the local
// dataset, migrates a pre-existing local blob into the remote store on first
// run, hydrates from the remote otherwise, and keeps local edits reconciled
// to the remote in the background until interrupted.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calebmorris/go-song-funnel/internal/api"
	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/migrate"
	"github.com/calebmorris/go-song-funnel/internal/server"
	"github.com/calebmorris/go-song-funnel/internal/store"
	funnelsync "github.com/calebmorris/go-song-funnel/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serverURL := os.Getenv("FUNNEL_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://" + server.DefaultAddr
	}

	var opts []api.Option
	if token := os.Getenv("FUNNEL_TOKEN"); token != "" {
		opts = append(opts, api.WithToken(token))
	}
	client := api.NewClient(serverURL, opts...)

	cache, err := store.DefaultCache()
	if err != nil {
		return fmt.Errorf("locating local cache: %w", err)
	}

	logger := log.New(os.Stderr, "song-funnel: ", log.LstdFlags)
	ctx := context.Background()

	state, err := startingState(ctx, client, cache, logger)
	if err != nil {
		return err
	}

	st := store.New(funnel.DefaultConfig())
	st.Replace(*state)

	svc := funnelsync.New(st, client,
		funnelsync.WithBaseline(st.Snapshot()),
		funnelsync.WithLogger(logger),
	)
	svc.Start()
	defer svc.Stop()

	// Persist every committed snapshot so a crash loses at most one edit.
	unsubscribe := st.Subscribe(func(snapshot store.State) {
		if err := cache.Save(snapshot); err != nil {
			logger.Printf("saving local state: %v", err)
		}
	})
	defer unsubscribe()

	logger.Printf("connected to %s, %d themes loaded", serverURL, len(state.Themes))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Flush(flushCtx); err != nil {
		logger.Printf("final push incomplete, will retry next run: %v", err)
	}
	return nil
}

// startingState decides between the three boot paths: migrate a local blob
// into an empty remote, hydrate from a populated remote, or start fresh.
func startingState(ctx context.Context, client *api.Client, cache *store.Cache, logger *log.Logger) (*store.State, error) {
	importer := migrate.New(client, cache, migrate.WithLogger(logger))

	needed, err := importer.Needed(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking migration: %w", err)
	}
	if needed {
		logger.Printf("migrating local data to the remote store")
		state, err := importer.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrating: %w", err)
		}
		return state, nil
	}

	themes, err := client.ListThemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading themes: %w", err)
	}
	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	saved, err := client.ListSavedSongs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading saved songs: %w", err)
	}
	return &store.State{
		Themes:     themes,
		Sessions:   sessions,
		SavedSongs: saved,
		Settings:   map[string]string{},
	}, nil
}
