package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/choicepoint/internal/poset"
	"github.com/danielpatrickdp/choicepoint/internal/trace"
	"github.com/danielpatrickdp/choicepoint/internal/tracestore"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to choicepoint.db")
	last := flag.Int("last", 20, "show N most recent sessions")
	session := flag.String("session", "", "show single session detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	showPoset := flag.Bool("poset", false, "print the selector partial order of the session's rules")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/choicepoint.db [--last N] [--session id] [--json] [--poset]")
		os.Exit(2)
	}

	store, err := tracestore.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *session != "" {
		err = runDetailMode(store, *session, *jsonOut, *showPoset)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	SessionID   string `json:"session_id"`
	Label       string `json:"label,omitempty"`
	CreatedAt   string `json:"created_at"`
	Invocations int    `json:"invocations"`
}

func runListMode(store *tracestore.Store, last int, jsonOut bool) error {
	sessions, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}

	rows := make([]listRow, len(sessions))
	for i, s := range sessions {
		rows[i] = listRow{
			SessionID:   s.SessionID,
			Label:       s.Label,
			CreatedAt:   s.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Invocations: s.Invocations,
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-12s  %11s  %s\n", "Session", "Label", "Invocations", "Time")
	fmt.Printf("%-12s+-%-12s+-%11s+-%s\n", "------------", "------------", "-----------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-12s  %11d  %s\n", shortID(r.SessionID), r.Label, r.Invocations, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(store *tracestore.Store, sessionID string, jsonOut, showPoset bool) error {
	sess, err := store.GetSession(sessionID)
	if err != nil {
		return err
	}

	if jsonOut {
		return sess.WriteJSON(os.Stdout)
	}

	sess.Render(os.Stdout)

	invocations, err := store.ListInvocations(sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("\nInvocations: %d\n", len(invocations))

	if showPoset {
		fmt.Printf("\nSelector poset:\n")
		g := poset.Build(poset.FromStrings(ruleSelectors(sess.Registry)))
		g.Render(os.Stdout)
	}
	return nil
}

// ruleSelectors collects every registered rule selector from the session's
// embedded registry snapshot.
func ruleSelectors(reg trace.Snapshot) []string {
	var out []string
	seen := make(map[string]bool)
	for _, fs := range reg {
		for _, r := range fs.Rules {
			s := strings.TrimSpace(r.Selector)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
