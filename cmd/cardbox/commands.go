package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/cardbox/internal/client"
	"github.com/verte-zerg/cardbox/internal/config"
	"github.com/verte-zerg/cardbox/internal/factsheet"
	"github.com/verte-zerg/cardbox/internal/model"
	"github.com/verte-zerg/cardbox/internal/scheduler"
	"github.com/verte-zerg/cardbox/internal/server"
	"github.com/verte-zerg/cardbox/internal/stats"
	"github.com/verte-zerg/cardbox/internal/store"
)

var (
	serveAddr string
	serveDB   string

	importBox int64
	importDB  string

	boxesDB     string
	boxesServer string

	statsBox   int64
	statsDays  int
	statsDB    string
	statsColor bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the card server",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&serveDB, "db", "", "database path (default: XDG data dir)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
	applyStringConfig(cmd, "db", &serveDB, fileCfg.Server.DB)
	cfg := model.ServerConfig{Addr: serveAddr, DBPath: resolveDBPath(serveDB)}
	if cfg.Addr == "" {
		return fmt.Errorf("--addr must not be empty")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(st, scheduler.New()).ListenAndServe(ctx, cfg.Addr)
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a YAML factsheet into a box",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
	cmd.Flags().Int64Var(&importBox, "box", 0, "update this box instead of creating a new one")
	cmd.Flags().StringVar(&importDB, "db", "", "database path (default: XDG data dir)")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	if importBox < 0 {
		return fmt.Errorf("--box must be >= 0")
	}
	fs, err := factsheet.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	st, err := openStore(importDB)
	if err != nil {
		return err
	}
	defer closeStore(st)

	res, err := factsheet.Import(cmd.Context(), st, fs, importBox, time.Now())
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", args[0], err)
	}
	verb := "Updated"
	if res.Created {
		verb = "Created"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s box %d %q: %d new, %d updated, %d disabled cards\n",
		verb, res.BoxID, fs.Title, res.Added, res.Updated, res.Disabled)
	return err
}

func newBoxesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boxes",
		Short: "List boxes",
		Args:  cobra.NoArgs,
		RunE:  runBoxesCmd,
	}
	cmd.Flags().StringVar(&boxesDB, "db", "", "database path (default: XDG data dir)")
	cmd.Flags().StringVar(&boxesServer, "server", "", "list the boxes of a card server instead of the local database")
	return cmd
}

func runBoxesCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	now := time.Now()
	if boxesServer != "" {
		c, err := client.New(boxesServer, client.Options{})
		if err != nil {
			return err
		}
		boxes, err := c.Boxes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list boxes: %w", err)
		}
		return stats.RenderBoxes(cmd.OutOrStdout(), boxes, nil, now)
	}

	st, err := openStore(boxesDB)
	if err != nil {
		return err
	}
	defer closeStore(st)

	boxes, err := st.ListBoxes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list boxes: %w", err)
	}
	summaries := make([]model.BoxStats, 0, len(boxes))
	hists := make(map[int64][model.NumIntervals]int, len(boxes))
	for _, box := range boxes {
		s, err := st.BoxStats(ctx, box.ID, now)
		if err != nil {
			return err
		}
		hist, err := st.IntervalHistogram(ctx, box.ID)
		if err != nil {
			return err
		}
		summaries = append(summaries, s)
		hists[box.ID] = hist
	}
	return stats.RenderBoxes(cmd.OutOrStdout(), summaries, hists, now)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show box stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().Int64Var(&statsBox, "box", 0, "id of the box")
	cmd.Flags().IntVar(&statsDays, "days", defaultStatsDays, "number of days of activity to plot")
	cmd.Flags().StringVar(&statsDB, "db", "", "database path (default: XDG data dir)")
	cmd.Flags().BoolVar(&statsColor, "color", false, "force colored output")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsBox <= 0 {
		return fmt.Errorf("--box must be > 0")
	}
	if statsDays <= 0 {
		return fmt.Errorf("--days must be > 0")
	}
	st, err := openStore(statsDB)
	if err != nil {
		return err
	}
	defer closeStore(st)

	report, err := stats.BuildReport(cmd.Context(), st, statsBox, statsDays, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	return report.Render(cmd.OutOrStdout(), 0, 0, statsColor)
}

func resolveDBPath(path string) string {
	if path == "" {
		return config.DefaultDBPath()
	}
	return path
}

func openStore(path string) (*store.Store, error) {
	if path == "" {
		fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if fileCfg.Server.DB != nil {
			path = *fileCfg.Server.DB
		}
	}
	st, err := store.Open(resolveDBPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}
