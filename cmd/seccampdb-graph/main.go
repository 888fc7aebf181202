// Command seccampdb-graph runs a batch script of transaction command
// sequences through pkg/scheduler and dumps the resulting conflict graph
// (and its msgpack history trace), adapted from cobaltdb's cmd/debug
// scripted walkthrough — a fixed sequence of operations run once and
// inspected — repurposed here to script transactions and inspect the
// graph instead of printing SQL rows.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/seccampdb/seccampdb/internal/command"
	"github.com/seccampdb/seccampdb/pkg/scheduler"
	"github.com/seccampdb/seccampdb/pkg/store"
	"github.com/seccampdb/seccampdb/pkg/trace"
	"github.com/seccampdb/seccampdb/pkg/txn"
)

func main() {
	var (
		scriptPath   = flag.String("script", "", "path to a batch script (required)")
		snapshotPath = flag.String("snapshot", "seccampdb-graph.snapshot", "snapshot file path")
		logPath      = flag.String("wal", "seccampdb-graph.wal", "write-ahead log file path")
		graphPath    = flag.String("graph", ".seccampDB_graph", "Graphviz output path")
		tracePath    = flag.String("trace", "", "history trace output path (default: <graph>.trace)")
	)
	flag.Parse()

	if *scriptPath == "" {
		log.Fatal("seccampdb-graph: -script is required")
	}
	if *tracePath == "" {
		*tracePath = *graphPath + ".trace"
	}

	blocks, err := readScript(*scriptPath)
	if err != nil {
		log.Fatalf("seccampdb-graph: %v", err)
	}

	s, err := store.New(*snapshotPath, *logPath)
	if err != nil {
		log.Fatalf("seccampdb-graph: failed to open store: %v", err)
	}
	defer s.Shutdown()

	sch := scheduler.New(s)
	for _, lines := range blocks {
		lines := lines
		sch.Add(func(tx *txn.Transaction) {
			runBlock(tx, lines)
		})
	}
	sch.Start()

	history := sch.History()
	g := sch.Graph()

	if err := os.WriteFile(*graphPath, []byte(g.Graphviz()), 0o644); err != nil {
		log.Fatalf("seccampdb-graph: writing graph: %v", err)
	}
	if err := trace.Dump(*tracePath, history); err != nil {
		log.Fatalf("seccampdb-graph: writing trace: %v", err)
	}

	fmt.Printf("wrote %s and %s (%d transactions, %d history entries)\n",
		*graphPath, *tracePath, len(blocks), len(history))
}

// readScript splits a file into per-transaction blocks of command lines,
// blocks separated by one or more blank lines. Lines starting with '#' are
// comments.
func readScript(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()

	var blocks [][]string
	var current []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return blocks, nil
}

// runBlock drives tx through lines, a block's worth of parsed commands.
func runBlock(tx *txn.Transaction, lines []string) {
	for _, line := range lines {
		cmd, err := command.Parse(line)
		if err != nil {
			log.Printf("seccampdb-graph: tx %d: %v", tx.ID(), err)
			continue
		}

		switch cmd.Verb {
		case command.Begin:
			tx.Begin()
		case command.Set:
			tx.Set(cmd.Key, cmd.Value)
		case command.Get:
			tx.Get(cmd.Key)
		case command.Del:
			tx.Del(cmd.Key)
		case command.Keys:
			tx.Keys()
		case command.Commit:
			if err := tx.Commit(); err != nil {
				log.Printf("seccampdb-graph: tx %d: commit failed: %v", tx.ID(), err)
			}
		case command.Abort:
			tx.Abort()
		}
	}
}
