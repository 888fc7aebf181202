// Command seccampdb-server listens for TCP connections and drives one
// transaction per connection via pkg/frontend, adapted from
// cobaltdb-server's flag parsing and signal-based graceful shutdown.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/seccampdb/seccampdb/pkg/frontend"
	"github.com/seccampdb/seccampdb/pkg/store"
)

func main() {
	var (
		address      = flag.String("addr", ":4201", "server address")
		dataDir      = flag.String("data", "./data", "data directory")
		snapshotName = flag.String("snapshot", "seccampdb.snapshot", "snapshot file name within -data")
		logName      = flag.String("wal", "seccampdb.wal", "write-ahead log file name within -data")
	)
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	snapshotPath := fmt.Sprintf("%s/%s", *dataDir, *snapshotName)
	logPath := fmt.Sprintf("%s/%s", *dataDir, *logName)

	s, err := store.New(snapshotPath, logPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer s.Shutdown()

	log.Printf("seccampdb-server starting...")
	log.Printf("data directory: %s", *dataDir)
	log.Printf("listening on: %s", *address)

	srv := frontend.New(s)

	ln, err := net.Listen("tcp", *address)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("shutting down...")
		srv.Close()
	}()

	if err := srv.Serve(ln); err != nil && err != frontend.ErrServerClosed {
		log.Printf("server error: %v", err)
	}
}
