package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/watcher"
)

func main() {
	if err := watcher.Run(); err != nil {
		log.Error().Err(err).Msg("eventwatch exited with error")
		os.Exit(1)
	}
}
