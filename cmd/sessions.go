package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jiho-dev/askweb/internal/app"
	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/log"
	"github.com/jiho-dev/askweb/internal/session"
)

// runNew archives the current session, if any, and clears the recorded
// session so the next ask starts fresh.
func runNew(logger log.Logger) error {
	if err := runEnd(logger); err != nil {
		return err
	}
	fmt.Println("New session will start with the next ask.")
	return nil
}

// runEnd archives the current session into the durable store and clears
// the record.
func runEnd(logger log.Logger) error {
	id, err := session.LoadCurrentSessionID()
	if err != nil {
		return err
	}
	if id == nil {
		fmt.Println("No current session.")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Without a durable backend there is nothing to flush; forget the
	// session and be done.
	if cfg.DurableStore == config.StoreNone {
		if err := session.ClearCurrentSessionID(); err != nil {
			return err
		}
		fmt.Printf("Session %s ended.\n", id)
		return nil
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	// Sessions live in the durable store between runs; acquiring pulls
	// it back so the archive below flushes a hydrated index.
	if _, err := a.Sessions.Acquire(ctx, *id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			if err := session.ClearCurrentSessionID(); err != nil {
				return err
			}
			fmt.Printf("Session %s already gone.\n", id)
			return nil
		}
		return err
	}
	if err := a.Sessions.Archive(ctx, *id); err != nil {
		return err
	}
	if err := session.ClearCurrentSessionID(); err != nil {
		return err
	}
	fmt.Printf("Session %s archived.\n", id)
	return nil
}
