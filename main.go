// DNSBunch is a DNS health analyzer. It inspects a domain's delegation,
// authority records, mail setup and security posture the way a resolver
// sees them, and serves the reports over an HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/semihalev/zlog/v2"
	"github.com/spf13/cobra"

	"github.com/dnsbunch/dnsbunch/api"
	"github.com/dnsbunch/dnsbunch/checker"
	"github.com/dnsbunch/dnsbunch/config"
	"github.com/dnsbunch/dnsbunch/tld"
)

const version = "0.9.0"

var (
	flagcfgpath string
	flagchecks  string

	cfg *config.Config
)

func setup() error {
	var err error

	if cfg, err = config.Load(flagcfgpath, version); err != nil {
		return fmt.Errorf("config loading failed: %w", err)
	}

	logger := zlog.NewStructured()
	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(logLevel(cfg.LogLevel))
	zlog.SetDefault(logger)

	return nil
}

func logLevel(name string) zlog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zlog.LevelDebug
	case "warn":
		return zlog.LevelWarn
	case "error":
		return zlog.LevelError
	default:
		return zlog.LevelInfo
	}
}

func newRegistry() (*tld.Registry, error) {
	registry, err := tld.Load(cfg.TLDData)
	if err != nil {
		return nil, fmt.Errorf("tld registry loading failed: %w", err)
	}

	return registry, nil
}

func serve(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}

	zlog.Info("Starting dnsbunch...", "version", version)

	registry, err := newRegistry()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := registry.Watch(ctx); err != nil {
		zlog.Error("TLD registry watch failed", "error", err.Error())
	}

	a := api.New(cfg, checker.New(cfg, registry))
	a.Run(ctx)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	<-c

	zlog.Info("Stopping dnsbunch...")
	cancel()

	return nil
}

// check runs a one-shot analysis and prints the report as JSON.
func check(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}

	registry, err := newRegistry()
	if err != nil {
		return err
	}

	var checks []string
	if flagchecks != "" {
		checks = strings.Split(flagchecks, ",")
	}

	report, err := checker.New(cfg, registry).Analyze(context.Background(), args[0], checks)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}

func main() {
	root := &cobra.Command{
		Use:           "dnsbunch",
		Short:         "DNS health analyzer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagcfgpath, "config", "dnsbunch.toml",
		"location of the config file, if not found it will be generated")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	checkCmd := &cobra.Command{
		Use:   "check [domain]",
		Short: "Analyze a single domain and print the JSON report",
		Args:  cobra.ExactArgs(1),
		RunE:  check,
	}
	checkCmd.Flags().StringVar(&flagchecks, "checks", "",
		"comma separated list of checks to run, empty for all")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dnsbunch v" + version)
		},
	}

	root.AddCommand(serveCmd, checkCmd, versionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
