package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/choicepoint/internal/tracestore"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to choicepoint.db")
	session := flag.String("session", "", "session id to export")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	if *dbPath == "" || *session == "" {
		fmt.Fprintln(os.Stderr, "usage: export --db path/to/choicepoint.db --session id [--out file.json]")
		os.Exit(2)
	}

	store, err := tracestore.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	data, err := store.RawSession(*session)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(w)
}

// #endregion main
