package main

import (
	"flag"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/nimbusworks/workchat/internal/config"
	"github.com/nimbusworks/workchat/internal/devserver"
	"github.com/nimbusworks/workchat/internal/logger"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger.Setup(true)

	sessions := devserver.NewSessionStore(config.GetRedisURL(), config.GetRedisPassword())
	responder := devserver.NewResponder(config.GetOpenAIKey())

	server := devserver.NewServer(sessions, responder)

	log.Info().Str("addr", *addr).Msg("Dev server starting")
	if err := http.ListenAndServe(*addr, server.Router()); err != nil {
		log.Fatal().Err(err).Msg("ListenAndServe failed")
	}
}
