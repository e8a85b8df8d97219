// Command optiswap is a toolbox around the fair-exchange verification core:
// it evaluates decryption circuits, builds and checks accumulator proofs,
// opens commitments and simulates complete trades, disputes included, on an
// in-memory ledger.
//
// Usage:
//
//	optiswap [--config FILE] [--log.level LEVEL] [--log.format FORMAT] <command>
//
// Commands:
//
//	eval        Evaluate a circuit file and print its trace
//	accumulate  Print the accumulator root of a value file
//	prove       Print the membership proof of one value
//	verify      Check a membership proof against a root
//	commit      Print the commitment to a value and salt
//	open        Check a commitment opening
//	simulate    Run a trade and, if needed, a dispute
//	version     Print version information
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/optiswap/optiswap/config"
	"github.com/optiswap/optiswap/log"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

const (
	flagConfig    = "config"
	flagLogLevel  = "log.level"
	flagLogFormat = "log.format"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	return runWith(args, os.Stdout, os.Stderr)
}

func runWith(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// app carries the configuration resolved before a subcommand runs.
type app struct {
	v   *viper.Viper
	cfg config.Config
	log *log.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: config.NewViper()}
	root := &cobra.Command{
		Use:           "optiswap",
		Short:         "Optimistic fair-exchange verification toolbox",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String(flagConfig, "", "config file (toml, yaml or json)")
	pf.String(flagLogLevel, config.DefaultConfig().LogLevel, "log level: debug, info, warn, error")
	pf.String(flagLogFormat, config.DefaultConfig().LogFormat, "log format: json, text")
	_ = a.v.BindPFlag(config.KeyLogLevel, pf.Lookup(flagLogLevel))
	_ = a.v.BindPFlag(config.KeyLogFormat, pf.Lookup(flagLogFormat))

	root.AddCommand(
		cmdEval(a),
		cmdAccumulate(),
		cmdProve(),
		cmdVerify(),
		cmdCommit(),
		cmdOpen(),
		cmdSimulate(a),
		cmdVersion(),
	)
	return root
}

// load resolves the configuration and installs the default logger.
func (a *app) load(cmd *cobra.Command, stderr io.Writer) error {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return err
	}
	if path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	lg, err := log.NewWithFormat(stderr, level, cfg.LogFormat)
	if err != nil {
		return err
	}
	log.SetDefault(lg)
	a.cfg = cfg
	a.log = lg.Module("cli")
	return nil
}

func cmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "optiswap %s (commit %s)\n", version, commit)
			return nil
		},
	}
}
