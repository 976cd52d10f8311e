package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/cardbox/internal/config"
	"github.com/verte-zerg/cardbox/internal/model"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		logErrln("Created", path)
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStudyConfig(cmd *cobra.Command, fc config.StudyConfig) error {
	applyStringConfig(cmd, "server", &studyServer, fc.Server)
	applyInt64Config(cmd, "box", &studyBox, fc.Box)
	applyIntConfig(cmd, "stack-size", &studyStackSize, fc.StackSize)
	applyIntConfig(cmd, "max-in-flight", &studyMaxInFlight, fc.MaxInFlight)
	applyBoolConfig(cmd, "lifo", &studyLIFO, fc.LIFO)
	applyBoolConfig(cmd, "show-stack", &studyShowStack, fc.ShowStack)
	applyStringsConfig(cmd, "flip-keys", &studyFlipKeys, fc.FlipKeys)
	applyStringsConfig(cmd, "correct-keys", &studyCorrectKeys, fc.CorrectKeys)
	applyStringsConfig(cmd, "wrong-keys", &studyWrongKeys, fc.WrongKeys)
	applyIntConfig(cmd, "grade-retries", &studyGradeRetries, fc.GradeRetries)
	if fc.Timeout != nil && !cmd.Flags().Changed("timeout") {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout in config: %w", err)
		}
		studyTimeout = d
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringsConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# cardbox configuration
# Uncomment a value to enable it. CLI flags override config values.

[study]
# server = %q   # Card server URL
# box = 1                              # Box to study
# stack-size = %d                       # Cards kept ready ahead of time
# max-in-flight = %d                    # Concurrent card requests
# lifo = false                         # Show the most recently fetched card first
# show-stack = false                   # Show the prefetch stack indicator
# flip-keys = ["space", "enter"]       # Keys that flip a card
# correct-keys = ["enter"]             # Keys that grade correct after a flip
# wrong-keys = ["space"]               # Keys that grade wrong after a flip
# grade-retries = %d                    # Retries for a failed grade submission
# timeout = %q                        # Timeout of a single server request

[server]
# addr = %q                       # Listen address
# db = "/path/to/cardbox.db"           # Database path
`,
		defaultServer,
		defaultStackSize,
		defaultMaxInFlight,
		defaultGradeRetries,
		defaultTimeout.String(),
		defaultAddr,
	)
}

func validateStudyConfig(cfg model.StudyConfig) error {
	if cfg.Server == "" {
		return fmt.Errorf("--server must not be empty")
	}
	if cfg.BoxID <= 0 {
		return fmt.Errorf("--box must be > 0 (list boxes with: cardbox boxes)")
	}
	if cfg.StackSize <= 0 {
		return fmt.Errorf("--stack-size must be > 0")
	}
	if cfg.MaxInFlight <= 0 {
		return fmt.Errorf("--max-in-flight must be > 0")
	}
	if cfg.GradeRetries < 0 {
		return fmt.Errorf("--grade-retries must be >= 0")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	for name, keys := range map[string][]string{"--flip-keys": cfg.FlipKeys, "--correct-keys": cfg.CorrectKeys, "--wrong-keys": cfg.WrongKeys} {
		if len(keys) == 0 {
			return fmt.Errorf("%s must not be empty", name)
		}
		for _, k := range keys {
			if k == "q" || k == "ctrl+c" || k == "?" {
				return fmt.Errorf("%s must not contain %q, it is reserved", name, k)
			}
		}
	}
	for _, c := range cfg.CorrectKeys {
		for _, w := range cfg.WrongKeys {
			if c == w {
				return fmt.Errorf("--correct-keys and --wrong-keys share %q", c)
			}
		}
	}
	return nil
}
