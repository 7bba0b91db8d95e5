package main

import (
	"flag"
	"fmt"
	"os"

	"monumentwars/internal/match"
	persistlog "monumentwars/internal/persistence/log"
)

func main() {
	var (
		eventsDir = flag.String("events", "./data/events", "events dir containing events-*.jsonl.zst")
		matchID   = flag.String("match", "", "only print this match (optional)")
		quiet     = flag.Bool("quiet", false, "verify only, do not print timelines")
	)
	flag.Parse()

	files, err := persistlog.EventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	tl := newTimelines()
	for _, path := range files {
		err := persistlog.ReadEvents(path, func(e match.EventEntry) error {
			if *matchID != "" && e.MatchID != *matchID {
				return nil
			}
			tl.add(e)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}

	failed := false
	for _, m := range tl.ordered() {
		if !*quiet {
			m.print(os.Stdout)
		}
		for _, problem := range m.verify() {
			failed = true
			fmt.Fprintf(os.Stderr, "match %s: %s\n", m.ID, problem)
		}
	}
	if failed {
		os.Exit(1)
	}
	fmt.Printf("replay ok: matches=%d files=%d\n", len(tl.byID), len(files))
}
