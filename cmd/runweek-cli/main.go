package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/claude/runweek/internal/config"
	"github.com/claude/runweek/internal/journal"
	"github.com/claude/runweek/internal/models"
	"github.com/claude/runweek/internal/notify"
	"github.com/claude/runweek/internal/remote"
	"github.com/claude/runweek/internal/swap"
	"github.com/claude/runweek/internal/weekview"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to client config file (default: environment only)")
	weekOf := flag.String("week", "", "any date in the week to show (YYYY-MM-DD, default: this week)")
	swapPair := flag.String("swap", "", "swap two sessions by id: <id>,<id>")
	expand := flag.String("expand", "", "comma-separated session ids to show expanded")
	showIDs := flag.Bool("ids", false, "list session ids instead of cards")
	history := flag.Int("history", 0, "print the N most recent swaps from the journal and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("runweek-cli", Version)
		return
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Log.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jr, err := journal.Open(cfg.JournalDir)
	if err != nil {
		log.Error("failed to open journal", "dir", cfg.JournalDir, "error", err)
		os.Exit(1)
	}
	defer jr.Close()

	if *history > 0 {
		if err := printHistory(ctx, jr, *history); err != nil {
			log.Error("failed to read journal", "error", err)
			os.Exit(1)
		}
		return
	}

	start := models.WeekStart(time.Now())
	if *weekOf != "" {
		day, err := models.ParseDate(*weekOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: -week: %v\n", err)
			os.Exit(1)
		}
		start = models.WeekStart(day)
	}

	client := remote.NewClient(strings.TrimRight(cfg.ServerURL, "/"), cfg.APIKey)
	payload, err := client.FetchWeek(ctx, start, start.AddDate(0, 0, 7))
	if err != nil {
		log.Error("failed to load week", "week", start.Format(time.DateOnly), "error", err)
		os.Exit(1)
	}

	notices := &notify.Recorder{}
	view := weekview.New(payload, weekview.Deps{
		Persister:   client,
		Notifier:    notify.Multi{notify.NewLog(log), notices},
		Log:         log,
		Gesture:     cfg.Engine.Gesture(),
		Policy:      cfg.Engine.Policy(),
		SyncTimeout: cfg.Engine.SyncTimeout,
		Source:      client,
		Journal:     jr,
		WeekStart:   start,
	})

	if *swapPair != "" {
		source, target, ok := strings.Cut(*swapPair, ",")
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: -swap wants two ids separated by a comma\n")
			os.Exit(1)
		}
		source, target = strings.TrimSpace(source), strings.TrimSpace(target)
		res := view.Drop(ctx, source, target)
		switch res.Outcome {
		case weekview.Rejected:
			msg := (&swap.Rejection{Reason: res.Reason}).UserMessage()
			fmt.Fprintf(os.Stderr, "Swap rejected: %s\n", msg)
		case weekview.Cancelled:
			fmt.Fprintln(os.Stderr, "Nothing to swap.")
		}
		view.Wait()
		for _, n := range notices.Notices() {
			fmt.Printf("[%s] %s\n", n.Level, n.Message)
		}
	}

	for _, id := range strings.Split(*expand, ",") {
		if id = strings.TrimSpace(id); id != "" {
			view.Toggle(id)
		}
	}

	fmt.Printf("Week of %s\n", start.Format("Mon 02 Jan 2006"))
	if *showIDs {
		printIDs(view.Snapshot())
		return
	}
	if err := view.Render(os.Stdout); err != nil {
		log.Error("render failed", "error", err)
		os.Exit(1)
	}
}

func printIDs(snap models.WeekSnapshot) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, s := range snap.Sessions() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.DndID(), s.ScheduledOn().Format("Mon 02 Jan"), s.Kind())
	}
	tw.Flush()
}

func printHistory(ctx context.Context, jr *journal.Journal, limit int) error {
	entries, err := jr.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No swaps recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SETTLED\tSTATE\tKIND\tSOURCE\tTARGET\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.SettledAt.Local().Format(time.DateTime), e.State, e.Kind, e.SourceID, e.TargetID, e.Error)
	}
	return tw.Flush()
}
