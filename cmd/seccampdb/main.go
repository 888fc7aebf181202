// Command seccampdb is the interactive REPL and one-shot command runner,
// adapted from cobaltdb-cli's flag-based dual-mode shape: a SQL shell
// there, a seven-verb KV shell here.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/seccampdb/seccampdb/internal/command"
	"github.com/seccampdb/seccampdb/pkg/store"
	"github.com/seccampdb/seccampdb/pkg/txn"
)

func main() {
	var (
		snapshotPath = flag.String("snapshot", "seccampdb.snapshot", "snapshot file path")
		logPath      = flag.String("wal", "seccampdb.wal", "write-ahead log file path")
		help         = flag.Bool("help", false, "show help")
	)
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	s, err := store.New(*snapshotPath, *logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seccampdb: failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer s.Shutdown()

	args := flag.Args()
	if len(args) > 0 {
		runScript(s, strings.Join(args, " "))
		return
	}

	runInteractive(s)
}

func printHelp() {
	fmt.Print(`seccampdb - in-memory key/value store shell

Usage:
  seccampdb [options] [commands...]
  seccampdb [options]              # interactive mode

Options:
  -snapshot <path>   snapshot file path (default: seccampdb.snapshot)
  -wal <path>        write-ahead log file path (default: seccampdb.wal)
  -help              show this help message

Commands (one transaction at a time):
  begin
  set <key> <value>
  get <key>
  del <key>
  keys
  commit
  abort
`)
}

// runScript drives one transaction through a semicolon-separated sequence
// of commands passed on the command line.
func runScript(s *store.Store, script string) {
	tx := txn.New(txn.NextID(), s, nil)
	for _, line := range strings.Split(script, ";") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !runLine(tx, line) {
			return
		}
	}
}

func runInteractive(s *store.Store) {
	tx := txn.New(txn.NextID(), s, nil)
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("seccampdb interactive shell")
	fmt.Println("Type 'begin' to start, 'commit'/'abort' to end, Ctrl-D to quit.")

	for {
		fmt.Print("seccampdb> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !runLine(tx, line) {
			return
		}
		if tx.IsDone() {
			tx = txn.New(txn.NextID(), s, nil)
		}
	}
}

// runLine parses and applies one command against tx, printing parse or
// operation errors to stderr rather than aborting the session.
func runLine(tx *txn.Transaction, line string) bool {
	cmd, err := command.Parse(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return true
	}

	switch cmd.Verb {
	case command.Begin:
		tx.Begin()
	case command.Set:
		tx.Set(cmd.Key, cmd.Value)
	case command.Get:
		if v, ok := tx.Get(cmd.Key); ok {
			fmt.Println(v)
		} else {
			fmt.Println("(not found)")
		}
	case command.Del:
		if !tx.Del(cmd.Key) {
			fmt.Fprintf(os.Stderr, "error: key %q not found\n", cmd.Key)
		}
	case command.Keys:
		for _, k := range tx.Keys() {
			fmt.Println(k)
		}
	case command.Commit:
		if err := tx.Commit(); err != nil {
			fmt.Fprintf(os.Stderr, "error: commit failed: %v\n", err)
		}
	case command.Abort:
		tx.Abort()
	}
	return true
}
