package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/nimbusworks/workchat/internal/api"
	"github.com/nimbusworks/workchat/internal/auth"
	"github.com/nimbusworks/workchat/internal/chat"
	"github.com/nimbusworks/workchat/internal/config"
	"github.com/nimbusworks/workchat/internal/connections"
	"github.com/nimbusworks/workchat/internal/logger"
)

// printingHandler mirrors streamed chunks to stdout while forwarding
// every frame to the session state.
type printingHandler struct {
	session *chat.Session
}

func (h *printingHandler) HandleFrame(frame *chat.Frame) {
	switch frame.Type {
	case chat.FrameStreamChunk:
		fmt.Print(frame.Content)
	case chat.FrameComplete, chat.FrameStreamComplete:
		fmt.Println()
	}
	h.session.HandleFrame(frame)
}

func main() {
	var (
		serverURL   = flag.String("server", config.GetAPIBaseURL(), "backend base URL")
		workspaceID = flag.String("workspace", "", "workspace id to chat in")
		username    = flag.String("user", "dev", "username for login")
		password    = flag.String("pass", "dev", "password for login")
	)
	flag.Parse()

	logger.Setup(true)

	if *workspaceID == "" {
		fmt.Fprintln(os.Stderr, "workchat: -workspace is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restore := config.SetAPIBaseURL(*serverURL)
	defer restore()

	store := auth.NewStore(config.GetRedisURL(), config.GetRedisPassword(), "")
	client := api.NewClient(config.GetAPIBaseURL(), store)

	creds, err := store.Load(ctx)
	if err != nil || !creds.Valid() {
		creds, err = client.Login(ctx, *username, *password)
		if err != nil {
			log.Fatal().Err(err).Msg("Login failed")
		}
	}

	sessionID, err := auth.SessionID(creds.AccessToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Access token is unusable")
	}

	watcher := auth.NewWatcher(store, client, func() {
		log.Error().Msg("Session expired - signed out")
		stop()
	})
	watcher.Start(ctx)
	defer watcher.Stop()

	pool := connections.NewPool(config.GetWSBaseURL(), sessionID, client,
		connections.WithStatusHandler(func(workspaceID string, status connections.Status) {
			log.Info().
				Str("workspace_id", workspaceID).
				Str("status", string(status)).
				Msg("Connection status changed")
		}))
	defer pool.Close()

	session := chat.NewSession(nil)

	conn, err := pool.Get(ctx, *workspaceID, &printingHandler{session: session})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open chat socket")
	}
	session.SetSender(conn)

	fmt.Printf("Connected to workspace %s. Type a message, Ctrl-C to quit.\n", *workspaceID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, err := session.Send(line); err != nil {
				log.Warn().Err(err).Msg("Message not sent")
			}
		}
	}
}
