package main

import (
	"sync"

	"github.com/rs/zerolog"
)

// terminalNavigator tracks the current route for a UI that has none.
type terminalNavigator struct {
	mu       sync.Mutex
	location string
	logger   zerolog.Logger
}

func newTerminalNavigator(start string, logger zerolog.Logger) *terminalNavigator {
	return &terminalNavigator{location: start, logger: logger}
}

func (n *terminalNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *terminalNavigator) Navigate(path string) {
	n.mu.Lock()
	from := n.location
	n.location = path
	n.mu.Unlock()
	n.logger.Info().Str("from", from).Str("to", path).Msg("Navigate")
}
