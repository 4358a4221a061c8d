// Package main is the volunteer command-line client. It drives the case
// lifecycle engine against a StrayMap server while keeping claim tokens in
// the device-local vault, so a case claimed here can be closed here later.
//
// Usage:
//
//	volunteer latest
//	volunteer list -status open
//	volunteer show -id <report-id>
//	volunteer mine
//	volunteer claim -id <report-id>
//	volunteer update -id <report-id> -text "seen again near the park"
//	volunteer close -id <report-id> -result resolved [-needs-help] [-note ...] [-help-note ...]
//
// The server address comes from STRAYMAP_API (default http://localhost:8080).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/client"
	"github.com/straymap/straymap-server/internal/lifecycle"
	"github.com/straymap/straymap-server/internal/models"
	"github.com/straymap/straymap-server/internal/vault"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	baseURL := os.Getenv("STRAYMAP_API")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	vaultPath, err := vault.DefaultPath()
	if err != nil {
		fatal("cannot locate vault: %v", err)
	}
	v, err := vault.Open(vaultPath)
	if err != nil {
		fatal("cannot open vault: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	api := client.New(baseURL)
	engine := lifecycle.NewEngine(api, v, logger.Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "latest":
		runLatest(ctx, api)
	case "list":
		runList(ctx, api, os.Args[2:])
	case "show":
		runShow(ctx, api, os.Args[2:])
	case "mine":
		runMine(ctx, api, engine)
	case "claim":
		runClaim(ctx, engine, os.Args[2:])
	case "update":
		runUpdate(ctx, engine, os.Args[2:])
	case "close":
		runClose(ctx, engine, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func runLatest(ctx context.Context, api *client.Client) {
	reports, err := api.Latest(ctx, 5)
	if err != nil {
		fatal("%v", err)
	}
	printReports(reports)
}

func runList(ctx context.Context, api *client.Client, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "open", "status filter: open|in_progress|needs_help|resolved")
	limit := fs.Int("limit", 50, "max results")
	fs.Parse(args)

	st := models.Status(*status)
	if !st.Valid() {
		fatal("unknown status %q", *status)
	}

	reports, err := api.ListByStatus(ctx, st, *limit)
	if err != nil {
		fatal("%v", err)
	}
	printReports(reports)
}

func runShow(ctx context.Context, api *client.Client, args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	id := fs.String("id", "", "report id")
	fs.Parse(args)

	reportID := mustID(*id)
	report, err := api.Get(ctx, reportID)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("%s  [%s]  %s/%s\n", report.ID, report.Status, report.AnimalKind, report.Title)
	if report.Description != "" {
		fmt.Printf("  %s\n", report.Description)
	}
	fmt.Printf("  at %.5f,%.5f  created %s\n", report.Lat, report.Lng, report.CreatedAt.Format(time.RFC822))
	if report.ClosureNote != nil {
		fmt.Printf("  closure note: %s\n", *report.ClosureNote)
	}
	if report.NeedsHelp && report.HelpNote != nil {
		fmt.Printf("  help needed: %s\n", *report.HelpNote)
	}
	for _, u := range report.ImageURLs {
		fmt.Printf("  image: %s\n", u)
	}

	updates, err := api.Updates(ctx, reportID, 50)
	if err != nil {
		fatal("%v", err)
	}
	for _, u := range updates {
		fmt.Printf("  %s  %s\n", u.CreatedAt.Format(time.RFC822), u.Text)
		for _, img := range u.ImageURLs {
			fmt.Printf("    image: %s\n", img)
		}
	}
}

func runMine(ctx context.Context, api *client.Client, engine *lifecycle.Engine) {
	ids := engine.ClaimedIDs()
	if len(ids) == 0 {
		fmt.Println("no claimed cases on this device")
		return
	}
	reports, err := api.ListByIDs(ctx, ids, 200)
	if err != nil {
		fatal("%v", err)
	}
	printReports(reports)
}

func runClaim(ctx context.Context, engine *lifecycle.Engine, args []string) {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	id := fs.String("id", "", "report id")
	fs.Parse(args)

	_, err := engine.Claim(ctx, mustID(*id))
	if errors.Is(err, lifecycle.ErrAlreadyClaimed) {
		fatal("someone already took this case")
	}
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println("case claimed; add an update within 48h or it reopens")
}

func runUpdate(ctx context.Context, engine *lifecycle.Engine, args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "report id")
	text := fs.String("text", "", "what did you see or do?")
	fs.Parse(args)

	_, err := engine.AddUpdate(ctx, mustID(*id), *text, nil)
	if errors.Is(err, lifecycle.ErrEmptyUpdate) {
		fatal("update needs text")
	}
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println("update posted")
}

func runClose(ctx context.Context, engine *lifecycle.Engine, args []string) {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	id := fs.String("id", "", "report id")
	result := fs.String("result", "resolved", "outcome: resolved|reopen|fake")
	note := fs.String("note", "", "closure note")
	needsHelp := fs.Bool("needs-help", false, "the animal still needs help")
	helpNote := fs.String("help-note", "", "what help is needed")
	fs.Parse(args)

	err := engine.Close(ctx, mustID(*id), lifecycle.CloseRequest{
		Result:    models.CloseResult(*result),
		Note:      *note,
		NeedsHelp: *needsHelp,
		HelpNote:  *helpNote,
	})
	if errors.Is(err, lifecycle.ErrNotClaimant) {
		fatal("this device does not hold the claim for that case")
	}
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println("done")
}

func printReports(reports []models.Report) {
	if len(reports) == 0 {
		fmt.Println("nothing to show")
		return
	}
	for _, r := range reports {
		fmt.Printf("%s  [%-11s]  %-5s  %s\n", r.ID, r.Status, r.AnimalKind, r.Title)
	}
}

func mustID(raw string) uuid.UUID {
	if raw == "" {
		fatal("-id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		fatal("invalid report id %q", raw)
	}
	return id
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: volunteer <latest|list|show|mine|claim|update|close> [flags]")
}
