// Seed adds todos through the service against the configured store. A share
// of them get a due time that has already elapsed so the sweeper has work.
// Run from project root: go run ./scripts/seed -n 1000
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"todo-lifecycle/internal/config"
	"todo-lifecycle/internal/repository"
	"todo-lifecycle/internal/service"
)

func main() {
	total := flag.Int("n", 1000, "number of todos to create")
	pastEvery := flag.Int("past-every", 5, "every Nth todo is created already past due (0 disables)")
	flag.Parse()

	config.LoadDotEnv(".env")
	ctx := context.Background()
	cfg := config.Get()

	if cfg.StoreDriver == config.DriverMemory {
		fmt.Fprintln(os.Stderr, "Seeding needs a persistent store; set STORE_DRIVER")
		os.Exit(1)
	}
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Store failed:", err)
		os.Exit(1)
	}
	svc := service.NewTodoService(store)

	start := time.Now()
	for i := 1; i <= *total; i++ {
		due := start.Add(time.Duration(i) * time.Minute)
		if *pastEvery > 0 && i%*pastEvery == 0 {
			due = start.Add(-time.Duration(i) * time.Minute)
		}
		if _, err := svc.Create(ctx, fmt.Sprintf("Todo %d", i), due); err != nil {
			fmt.Fprintln(os.Stderr, "Create failed:", err)
			os.Exit(1)
		}
		if i%100 == 0 {
			fmt.Printf("\rInserted %d / %d", i, *total)
		}
	}
	n, err := svc.SweepPastDue(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Sweep failed:", err)
		os.Exit(1)
	}
	fmt.Printf("\nDone: %d todos (%d past due) in %v\n", *total, n, time.Since(start))
}
