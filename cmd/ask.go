package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jiho-dev/askweb/internal/app"
	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/log"
	"github.com/jiho-dev/askweb/internal/pipeline"
	"github.com/jiho-dev/askweb/internal/session"
)

// runAsk researches and answers one question, continuing the current
// session when one is recorded.
func runAsk(logger log.Logger, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("usage: askweb ask \"question\"")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
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

	sess, err := currentSession(ctx, a)
	if err != nil {
		return err
	}

	result := a.Orchestrator.ProcessQuery(ctx, sess, question)
	printResult(result)

	if err := session.SaveCurrentSessionID(sess.ID); err != nil {
		logger.Warn("could not record current session", "error", err)
	}

	// With a durable backend the index survives this process; flush it
	// now so the next invocation can resume.
	if a.Store != nil {
		if err := a.Sessions.Archive(ctx, sess.ID); err != nil {
			logger.Warn("session archive failed", "session_id", sess.ID, "error", err)
		}
	}

	if !result.Success {
		return fmt.Errorf("question not answered: %s", result.FailureReason)
	}
	return nil
}

// currentSession resumes the recorded session or creates a fresh one.
func currentSession(ctx context.Context, a *app.App) (*session.Session, error) {
	id, err := session.LoadCurrentSessionID()
	if err != nil {
		return nil, err
	}
	if id != nil {
		sess, err := a.Sessions.Acquire(ctx, *id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrSessionNotFound) {
			return nil, err
		}
		a.Logger.Info("recorded session gone, starting fresh", "session_id", *id)
	}
	return a.Sessions.Create(), nil
}

func printResult(result pipeline.Result) {
	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range result.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	fmt.Println()
	fmt.Printf("confidence=%.2f time=%.2fs stage=%s\n",
		result.Confidence, result.ProcessingTime, result.Stage)
}
