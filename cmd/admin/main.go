package main

import (
	"encoding/json"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "monument":
			monumentCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <db|state|monument> [flags]")
	fmt.Fprintln(os.Stderr, "  db [matches|events|damagers] -db path [-match id] [-limit n]")
	fmt.Fprintln(os.Stderr, "  state [-url base]")
	fmt.Fprintln(os.Stderr, "  monument -name \"Blue Core\" [-url base]")
	os.Exit(2)
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
