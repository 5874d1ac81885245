package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"

	"pulsenet/internal/logging"
	"pulsenet/internal/model"
	"pulsenet/internal/storage"
	pulseapi "pulsenet/pkg/pulsenet"
)

const timestampLayout = "%Y-%m-%d %H:%M:%S"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "topology":
		return runTopology(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	flags := bindRunFlags(fs)
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := flags.resolve(fs)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Target, cfg.Log.Path); err != nil {
		return err
	}

	client, err := pulseapi.New(pulseapi.Options{StoreKind: cfg.Storage.Kind, DBPath: cfg.Storage.DBPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := pulseapi.RequestFromConfig(cfg)
	if !*jsonOut && stdoutIsTerminal() {
		req.Progress = progressPrinter(cfg.Driver.Epochs)
	}
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Printf("run_id=%s task=%s epochs=%d ticks=%s\n", summary.RunID, summary.Task, summary.Epochs, humanize.Comma(int64(summary.Ticks)))
	fmt.Printf("final_counts=%v\n", summary.FinalCounts)
	if summary.BestAction >= 0 {
		fmt.Printf("best_action=%d greedy_share=%.2f\n", summary.BestAction, summary.GreedyShare)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "pulsenet.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := pulseapi.New(pulseapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s (%s) task=%s seed=%d epochs=%d greedy_share=%.2f final_counts=%v\n",
			r.RunID,
			strftime.Format(timestampLayout, r.CreatedAtUTC),
			humanize.Time(r.CreatedAtUTC),
			r.Task,
			r.Seed,
			r.Epochs,
			r.GreedyShare,
			r.FinalCounts,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "show only the last N epochs (0 = all)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "pulsenet.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit epoch records as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := pulseapi.New(pulseapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	records, err := client.History(ctx, pulseapi.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(records)
	}
	for _, rec := range records {
		fmt.Println(formatEpoch(rec))
	}
	return nil
}

func runTopology(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("topology", flag.ContinueOnError)
	flags := bindRunFlags(fs)
	jsonOut := fs.Bool("json", false, "emit the full topology as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := flags.resolve(fs)
	if err != nil {
		return err
	}

	client, err := pulseapi.New(pulseapi.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	topo, err := client.Topology(ctx, pulseapi.RequestFromConfig(cfg))
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(topo)
	}
	fmt.Printf("units=%s synapses=%s populations=%d connections=%d\n",
		humanize.Comma(int64(topo.Units)), humanize.Comma(int64(topo.Synapses)), len(topo.Populations), len(topo.Connections))
	for _, name := range topo.RegionNames() {
		fmt.Printf("region=%s units=%s\n", name, humanize.Comma(int64(topo.Regions[name])))
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "output directory")
	window := fs.Int("window", 100, "learning curve window in epochs")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "pulsenet.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := pulseapi.New(pulseapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, pulseapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir, Window: *window})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func formatEpoch(rec model.EpochRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "epoch=%d tick=%s state=%d action=%d feedback=%s counts=%v",
		rec.Epoch, humanize.Comma(int64(rec.Tick)), rec.State, rec.Action, rec.Feedback, rec.Counts)
	if rec.Explored {
		b.WriteString(" explored")
	}
	if rec.Saturated {
		b.WriteString(" saturated")
	}
	return b.String()
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressPrinter rewrites one status line roughly every percent of the run.
func progressPrinter(total int) func(model.EpochRecord) {
	step := total / 100
	if step < 1 {
		step = 1
	}
	feedback := make(map[model.Feedback]int)
	return func(rec model.EpochRecord) {
		feedback[rec.Feedback]++
		if rec.Epoch%step != 0 && rec.Epoch != total {
			return
		}
		fmt.Printf("\repoch %d/%d tick %s %s", rec.Epoch, total, humanize.Comma(int64(rec.Tick)), feedbackTally(feedback))
		if rec.Epoch == total {
			fmt.Println()
		}
	}
}

func feedbackTally(counts map[model.Feedback]int) string {
	keys := make([]model.Feedback, 0, len(counts))
	for f := range counts {
		keys = append(keys, f)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	parts := make([]string, 0, len(keys))
	for _, f := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", f, counts[f]))
	}
	return strings.Join(parts, " ")
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: pulsenetctl <run|runs|history|topology|export> [flags]", msg)
}
