// ABOUTME: Entry point for the playsync player
// ABOUTME: Parses CLI flags and starts the player application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/playsync/internal/app"
)

var (
	serverAddr = flag.String("server", "", "Manual server address (skip mDNS)")
	port       = flag.Int("port", 8927, "Port for mDNS advertisement")
	name       = flag.String("name", "", "Player friendly name (default: hostname-playsync-player)")
	userID     = flag.String("user", "", "User whose playback state is synced (default: player name)")
	poll       = flag.Duration("poll", 5*time.Second, "Interval between snapshot polls")
	stateFile  = flag.String("state-file", "playsync-state.json", "Local resume state file (empty to disable)")
	logFile    = flag.String("log-file", "playsync-player.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-playsync-player", hostname)
	}

	log.Printf("Starting Playsync Player: %s", playerName)

	player := app.New(app.Config{
		ServerAddr:   *serverAddr,
		Port:         *port,
		Name:         playerName,
		UserID:       *userID,
		PollInterval: *poll,
		StateFile:    *stateFile,
		UseTUI:       useTUI,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down...", sig)
		player.Stop()
	}()

	if err := player.Start(); err != nil {
		log.Printf("Player error: %v", err)
		player.Stop()
		os.Exit(1)
	}

	player.Stop()
	log.Printf("Player stopped")
}
