package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"casegraph/internal/graph"
	"casegraph/internal/store/mysqlstore"
)

func main() {
	dsn := flag.String("dsn", "", "MySQL DSN (parseTime must be enabled)")
	incident := flag.String("incident", "", "Incident ID to rebuild")
	actor := flag.String("actor", "", "Actor ID recorded on created nodes and edges")
	timeout := flag.Duration("timeout", 60*time.Second, "Rebuild timeout")
	flag.Parse()

	if *dsn == "" || *incident == "" {
		fmt.Fprintln(os.Stderr, "usage: graph-rebuild -dsn <dsn> -incident <id> [-actor <id>]")
		os.Exit(2)
	}

	st, err := mysqlstore.Open(mysqlstore.Config{DSN: *dsn})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := st.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
		os.Exit(1)
	}

	builder := graph.NewBuilder(st, graph.NewIncidentLocks())
	result, err := builder.Build(ctx, *incident, *actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("rebuilt incident=%s nodes=%d edges=%d\n", *incident, len(result.Nodes), len(result.Edges))
}
