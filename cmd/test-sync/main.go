// ABOUTME: Test app to verify clock sync against a snapshot server
// ABOUTME: Runs time sync rounds and reports offset, RTT and the server-frame save stamp
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/playsync/internal/sync"
	"github.com/Resonate-Protocol/playsync/pkg/protocol"
	"github.com/google/uuid"
)

var (
	serverAddr = flag.String("server", "localhost:8927", "Server address")
	name       = flag.String("name", "test-sync", "Player name")
	rounds     = flag.Int("rounds", 10, "Number of sync rounds")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	fmt.Println("=== Clock Sync Test App ===")
	fmt.Println("This test will:")
	fmt.Println("1. Connect to the server")
	fmt.Println("2. Run time sync rounds")
	fmt.Println("3. Print the estimated server clock used to stamp saves")
	fmt.Println()

	client := protocol.NewClient(protocol.Config{
		ServerAddr: *serverAddr,
		ClientID:   uuid.New().String(),
		UserID:     "test-sync",
		Name:       *name,
	})

	fmt.Printf("Connecting to %s as '%s'...\n", *serverAddr, *name)
	if err := client.Connect(); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer client.Close()

	clockSync := sync.NewClockSync()

	for i := 0; i < *rounds; i++ {
		t1 := clockSync.ClientMicros()
		if err := client.SendTimeSync(t1); err != nil {
			log.Fatalf("Time sync failed: %v", err)
		}

		select {
		case resp := <-client.TimeSyncResp:
			t4 := clockSync.ClientMicros()
			clockSync.ProcessSyncResponse(resp.ClientTransmitted, resp.ServerReceived, resp.ServerTransmitted, t4)
			offset, rtt, quality := clockSync.GetStats()
			log.Printf("Round %d: offset=%+dμs rtt=%dμs quality=%s", i+1, offset, rtt, quality)
		case <-time.After(2 * time.Second):
			log.Printf("Round %d: timeout", i+1)
		}

		time.Sleep(200 * time.Millisecond)
	}

	local := time.Now().UnixMilli()
	server := clockSync.ServerNowMillis()
	log.Printf("Local now: %d ms, server now: %d ms (delta %+d ms)", local, server, server-local)
	log.Printf("Test complete")
}
