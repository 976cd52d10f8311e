// Package main provides the CLI entrypoint for cardbox.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/cardbox/internal/client"
	"github.com/verte-zerg/cardbox/internal/config"
	"github.com/verte-zerg/cardbox/internal/model"
	"github.com/verte-zerg/cardbox/internal/study"
	"github.com/verte-zerg/cardbox/internal/tui"
)

const (
	defaultServer       = "http://localhost:8080"
	defaultStackSize    = 5
	defaultMaxInFlight  = 1
	defaultGradeRetries = 2
	defaultTimeout      = 10 * time.Second
	defaultAddr         = ":8080"
	defaultStatsDays    = 14
)

var (
	studyServer       string
	studyBox          int64
	studyStackSize    int
	studyMaxInFlight  int
	studyLIFO         bool
	studyShowStack    bool
	studyFlipKeys     []string
	studyCorrectKeys  []string
	studyWrongKeys    []string
	studyGradeRetries int
	studyTimeout      time.Duration
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cardbox",
		Short:         "Flash card trainer with spaced repetition",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runStudyCmd,
	}
	addStudyFlags(rootCmd)

	studyCmd := &cobra.Command{
		Use:   "study",
		Short: "Study a box (default command)",
		Args:  cobra.NoArgs,
		RunE:  runStudyCmd,
	}
	addStudyFlags(studyCmd)

	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newBoxesCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func addStudyFlags(cmd *cobra.Command) {
	def := study.DefaultConfig()
	cmd.Flags().StringVar(&studyServer, "server", defaultServer, "card server URL")
	cmd.Flags().Int64Var(&studyBox, "box", 0, "id of the box to study")
	cmd.Flags().IntVar(&studyStackSize, "stack-size", defaultStackSize, "number of cards kept ready ahead of time")
	cmd.Flags().IntVar(&studyMaxInFlight, "max-in-flight", defaultMaxInFlight, "maximum concurrent card requests")
	cmd.Flags().BoolVar(&studyLIFO, "lifo", false, "show the most recently fetched card first")
	cmd.Flags().BoolVar(&studyShowStack, "show-stack", false, "show the prefetch stack indicator")
	cmd.Flags().StringSliceVar(&studyFlipKeys, "flip-keys", def.FlipKeys, "keys that flip a card")
	cmd.Flags().StringSliceVar(&studyCorrectKeys, "correct-keys", def.CorrectKeys, "keys that grade a flipped card correct")
	cmd.Flags().StringSliceVar(&studyWrongKeys, "wrong-keys", def.WrongKeys, "keys that grade a flipped card wrong")
	cmd.Flags().IntVar(&studyGradeRetries, "grade-retries", defaultGradeRetries, "retries for a failed grade submission")
	cmd.Flags().DurationVar(&studyTimeout, "timeout", defaultTimeout, "timeout of a single server request")
}

func runStudyCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyStudyConfig(cmd, fileCfg.Study); err != nil {
		return err
	}

	cfg := model.StudyConfig{
		Server:       studyServer,
		BoxID:        studyBox,
		StackSize:    studyStackSize,
		MaxInFlight:  studyMaxInFlight,
		LIFO:         studyLIFO,
		ShowStack:    studyShowStack,
		FlipKeys:     studyFlipKeys,
		CorrectKeys:  studyCorrectKeys,
		WrongKeys:    studyWrongKeys,
		GradeRetries: studyGradeRetries,
		Timeout:      studyTimeout,
	}
	if err := validateStudyConfig(cfg); err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("study needs an interactive terminal")
	}

	c, err := client.New(cfg.Server, client.Options{Timeout: cfg.Timeout, GradeRetries: cfg.GradeRetries})
	if err != nil {
		return err
	}

	logPath := config.DefaultStudyLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "study")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}()

	m := tui.NewModel(c, tui.Options{
		Session:   c.Session(),
		BoxID:     cfg.BoxID,
		Timeout:   cfg.Timeout,
		ShowStack: cfg.ShowStack,
		Study:     controllerConfig(cfg),
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	st := m.Controller().Stats()
	logErrf("Graded %d cards (%d grade failures, %d fetch failures).\n", st.Graded, st.GradeFailures, st.FetchFailures)
	return sessionError(st, m.Controller().LastGradeFailure())
}

// sessionError fails the study command when any grade of the session was not
// saved, even if later grades succeeded.
func sessionError(st study.Stats, last error) error {
	if st.GradeFailures == 0 {
		return nil
	}
	lost := english.Plural(st.GradeFailures, "grade was", "grades were")
	if last == nil {
		return fmt.Errorf("%s not saved", lost)
	}
	return fmt.Errorf("%s not saved, last error: %w", lost, last)
}

func controllerConfig(cfg model.StudyConfig) study.Config {
	sc := study.DefaultConfig()
	sc.Target = cfg.StackSize
	sc.MaxInFlight = cfg.MaxInFlight
	if cfg.LIFO {
		sc.Discipline = study.LIFO
	}
	sc.FlipKeys = cfg.FlipKeys
	sc.CorrectKeys = cfg.CorrectKeys
	sc.WrongKeys = cfg.WrongKeys
	return sc
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
