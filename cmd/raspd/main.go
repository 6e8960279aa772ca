package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/raspd/raspd/internal/config"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			for _, msg := range verr.Problems {
				fmt.Fprintln(os.Stderr, msg)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "raspd",
		Short:        "Runtime application self-protection agent",
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a raspd configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(configPath); err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "config ok"); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version=%s commit=%s buildDate=%s\n", version, commit, buildDate)
		},
	}
}

// loadConfig applies overrides between loading and validation so that flags
// such as --no-sync relax the checks they switch off.
func loadConfig(path string, overrides ...func(*config.Config)) (*config.Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
