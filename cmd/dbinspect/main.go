// Package main audits the denormalized counters of a spotlight store.
//
// It recounts likes, comments, posts and follows from their rows and reports
// every counter that disagrees. Run it while the server is stopped.
//
// Usage:
//
//	go run ./cmd/dbinspect
//	go run ./cmd/dbinspect -fix
//	go run ./cmd/dbinspect -json -- -store sqlite
//
// Arguments after the tool's own flags are passed to the server
// configuration loader.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/di"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

func main() {
	fs := flag.NewFlagSet("dbinspect", flag.ExitOnError)
	fix := fs.Bool("fix", false, "Rewrite drifted counters to their recounted values")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	injector := di.NewContainerWithConfig(cfg)
	code := run(injector, *fix, *asJSON)
	_ = injector.Shutdown()
	os.Exit(code)
}

func run(injector do.Injector, fix, asJSON bool) int {
	auditor, err := do.Invoke[*service.Auditor](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		return 1
	}

	ctx := context.Background()
	report, err := auditor.Audit(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Audit failed: %v\n", err)
		return 1
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		fmt.Println("=== Counter Audit ===")
		fmt.Printf("Users checked: %d\n", report.Users)
		fmt.Printf("Posts checked: %d\n", report.Posts)
		fmt.Printf("Drifted counters: %d\n", len(report.Drift))
		for _, d := range report.Drift {
			fmt.Printf("  %s\n", d)
		}
	}

	if report.OK() {
		return 0
	}
	if !fix {
		return 2
	}

	repaired, err := auditor.Repair(ctx, report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Repair failed after %d counters: %v\n", repaired, err)
		return 1
	}
	fmt.Printf("Repaired %d counters\n", repaired)
	return 0
}
