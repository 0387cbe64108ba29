package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hadassahlevi/tiktax-client/internal/bootstrap"
	"github.com/hadassahlevi/tiktax-client/internal/config"
	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
	"github.com/hadassahlevi/tiktax-client/internal/observability/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tiktax:", err)
		os.Exit(1)
	}
}

func run() error {
	global := flag.NewFlagSet("tiktax", flag.ExitOnError)
	configPath := global.String("config", os.Getenv("TIKTAX_CONFIG"), "path to YAML config file")
	global.Usage = usage
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(logging.NewJSONLogger(os.Stderr, "tiktax-client", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := bootstrap.New(cfg)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.Metrics.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Warn("metrics_listener_failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer server.Close()
	}

	// Credentials are volatile by design: every invocation starts
	// unauthenticated and logs in from the environment.
	email := os.Getenv("TIKTAX_EMAIL")
	password := os.Getenv("TIKTAX_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("TIKTAX_EMAIL and TIKTAX_PASSWORD must be set")
	}
	creds, err := app.Auth.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	app.Session.Set(creds)

	switch args[0] {
	case "list":
		return runList(ctx, app, args[1:])
	case "upload":
		return runUpload(ctx, app, args[1:])
	case "show":
		return runShow(ctx, app, args[1:])
	case "approve":
		return runApprove(ctx, app, args[1:])
	case "delete":
		return runDelete(ctx, app, args[1:])
	case "retry":
		return runRetry(ctx, app, args[1:])
	case "stats":
		return runStats(ctx, app, args[1:])
	case "export":
		return runExport(ctx, app, args[1:])
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tiktax [-config file] <command> [flags]

commands:
  list     list receipts in the archive
  upload   upload a receipt image and wait for interpretation
  show     fetch one receipt
  approve  review and approve a receipt
  delete   delete a receipt
  retry    retry a failed interpretation
  stats    aggregate statistics for the current filter
  export   export the filtered archive to an .xlsx file`)
}

func filterFlags(fs *flag.FlagSet) (status, category, vendor, search *string) {
	status = fs.String("status", "", "filter by lifecycle status")
	category = fs.String("category", "", "filter by category ("+categoryList()+")")
	vendor = fs.String("vendor", "", "filter by vendor substring")
	search = fs.String("search", "", "free-text search")
	return
}

func categoryList() string {
	categories := domain.Categories()
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func buildFilter(status, category, vendor, search string) (domain.Filter, error) {
	var filter domain.Filter
	if status != "" {
		parsed, ok := domain.ParseStatus(status)
		if !ok {
			return domain.Filter{}, fmt.Errorf("unknown status %q", status)
		}
		filter.Status = &parsed
	}
	if category != "" {
		parsed, ok := domain.ParseCategory(category)
		if !ok {
			return domain.Filter{}, fmt.Errorf("unknown category %q", category)
		}
		filter.Category = &parsed
	}
	filter.Vendor = vendor
	filter.Search = search
	return filter, nil
}

func runList(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status, category, vendor, search := filterFlags(fs)
	all := fs.Bool("all", false, "keep loading pages until the archive is exhausted")
	_ = fs.Parse(args)

	filter, err := buildFilter(*status, *category, *vendor, *search)
	if err != nil {
		return err
	}
	if err := app.Store.SetFilters(ctx, filter, domain.DefaultSort()); err != nil {
		return err
	}
	if *all {
		for app.Store.CanLoadMore() {
			if err := app.Store.LoadMore(ctx); err != nil {
				return err
			}
		}
	}

	snap := app.Store.Snapshot()
	for _, r := range snap.Items {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date.Format("2006-01-02"), r.Vendor, r.Amount.String(), r.Category, r.Status)
	}
	fmt.Printf("%d of %d receipts\n", len(snap.Items), snap.Total)
	return nil
}

func runUpload(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "receipt image file (jpeg, png or pdf)")
	wait := fs.Bool("wait", true, "wait for interpretation to conclude")
	_ = fs.Parse(args)
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	receipt, err := app.Store.Upload(ctx, *file, f)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded: %s (status %s)\n", receipt.ID, receipt.Status)

	if !*wait {
		return nil
	}
	observed, err := app.Watcher.Watch(ctx, receipt.ID)
	if err != nil {
		return err
	}
	if observed != nil {
		printReceipt(*observed)
	}
	return nil
}

func runShow(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	id := fs.String("id", "", "receipt id")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	receipt, err := app.Store.FetchOne(ctx, *id)
	if err != nil {
		return err
	}
	printReceipt(*receipt)
	return nil
}

func runApprove(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	id := fs.String("id", "", "receipt id")
	vendor := fs.String("vendor", "", "corrected vendor name")
	amount := fs.String("amount", "", "corrected amount")
	date := fs.String("date", "", "corrected date (YYYY-MM-DD)")
	category := fs.String("category", "", "corrected category ("+categoryList()+")")
	businessNumber := fs.String("business-number", "", "corrected business registration number")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	// Pull server truth into the store before the review mutation.
	if _, err := app.Store.FetchOne(ctx, *id); err != nil {
		return err
	}

	var patch domain.Patch
	if *vendor != "" {
		patch.Vendor = vendor
	}
	if *amount != "" {
		parsed, err := decimal.NewFromString(*amount)
		if err != nil {
			return fmt.Errorf("invalid amount %q", *amount)
		}
		patch.Amount = &parsed
	}
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			return fmt.Errorf("invalid date %q", *date)
		}
		patch.Date = &parsed
	}
	if *category != "" {
		parsed, ok := domain.ParseCategory(*category)
		if !ok {
			return fmt.Errorf("unknown category %q", *category)
		}
		patch.Category = &parsed
	}
	if *businessNumber != "" {
		patch.BusinessNumber = businessNumber
	}

	if err := app.Store.Approve(ctx, *id, patch); err != nil {
		if field := domain.ViolatedField(err); field != "" {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
		return err
	}
	fmt.Printf("approved: %s\n", *id)
	return nil
}

func runDelete(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "receipt id")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	if err := app.Store.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("deleted: %s\n", *id)
	return nil
}

func runRetry(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	id := fs.String("id", "", "receipt id")
	wait := fs.Bool("wait", true, "wait for the retried interpretation to conclude")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	if _, err := app.Store.FetchOne(ctx, *id); err != nil {
		return err
	}
	if err := app.Store.Retry(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("retry enqueued: %s\n", *id)

	if !*wait {
		return nil
	}
	observed, err := app.Watcher.Watch(ctx, *id)
	if err != nil {
		return err
	}
	if observed != nil {
		printReceipt(*observed)
	}
	return nil
}

func runStats(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	status, category, vendor, search := filterFlags(fs)
	_ = fs.Parse(args)

	filter, err := buildFilter(*status, *category, *vendor, *search)
	if err != nil {
		return err
	}
	if err := app.Store.SetFilters(ctx, filter, domain.DefaultSort()); err != nil {
		return err
	}
	if err := app.Store.FetchStatistics(ctx); err != nil {
		return err
	}

	snap := app.Store.Snapshot()
	if snap.Statistics == nil {
		return fmt.Errorf("no statistics returned")
	}
	stats := snap.Statistics
	fmt.Printf("receipts: %d\ntotal: %s\naverage: %s\n", stats.TotalReceipts, stats.TotalAmount.String(), stats.AverageAmount.String())
	for category, entry := range stats.ByCategory {
		fmt.Printf("  %s: %d (%s)\n", category, entry.Count, entry.Amount.String())
	}
	return nil
}

func runExport(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	status, category, vendor, search := filterFlags(fs)
	out := fs.String("out", "receipts.xlsx", "output .xlsx path")
	_ = fs.Parse(args)

	filter, err := buildFilter(*status, *category, *vendor, *search)
	if err != nil {
		return err
	}
	rows, err := app.Export.Export(ctx, filter, domain.DefaultSort(), *out)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d receipts to %s\n", rows, *out)
	return nil
}

func printReceipt(r domain.Receipt) {
	fmt.Printf("id:       %s\nstatus:   %s\nvendor:   %s\namount:   %s\ndate:     %s\ncategory: %s\n",
		r.ID, r.Status, r.Vendor, r.Amount.String(), formatDate(r.Date), r.Category)
	if r.BusinessNumber != "" {
		fmt.Printf("business: %s\n", r.BusinessNumber)
	}
	if r.Error != "" {
		fmt.Printf("error:    %s\n", strings.TrimSpace(r.Error))
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
