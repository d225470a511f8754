// ABOUTME: Entry point for the playsync snapshot server
// ABOUTME: Parses CLI flags, opens the snapshot store and starts the server
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/playsync/internal/server"
	"github.com/Resonate-Protocol/playsync/internal/store"
)

var (
	port    = flag.Int("port", 8927, "WebSocket server port")
	name    = flag.String("name", "", "Server friendly name (default: hostname-playsync-server)")
	dbPath  = flag.String("db", "playsync.db", "SQLite database path (empty for in-memory snapshots)")
	logFile = flag.String("log-file", "playsync-server.log", "Log file path")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	noMDNS  = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI   = flag.Bool("no-tui", false, "Disable TUI, log to stdout instead")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-playsync-server", hostname)
	}

	log.Printf("Starting Playsync Server: %s on port %d", serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	var st store.Store
	if *dbPath == "" {
		log.Printf("Using in-memory snapshot store")
		st = store.NewMemoryStore(store.SystemClock)
	} else {
		sqliteStore, err := store.Open(*dbPath, store.Options{})
		if err != nil {
			log.Fatalf("Failed to open snapshot store: %v", err)
		}
		log.Printf("Using snapshot store: %s", *dbPath)
		st = sqliteStore
	}
	defer st.Close()

	config := server.Config{
		Port:       *port,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		Debug:      *debug,
		UseTUI:     useTUI,
	}

	srv := server.New(config, st)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Printf("Server error: %v", err)
		st.Close()
		os.Exit(1)
	}

	log.Printf("Server stopped")
}
