package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/libreadept/adl/agent"
	"github.com/libreadept/adl/agent/database"
	"github.com/libreadept/adl/agent/types"
)

var (
	VERSION = "0.0.0-dev.0"
)

var rootCmd = &cobra.Command{
	Use:               "adl",
	Version:           VERSION,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	Short:             "Activate devices and fulfill ACSM tokens against an ADEPT server",
}

type rootFlags struct {
	configFile string
	verbose    bool
	timeout    time.Duration
}

var rootArgs = rootFlags{
	timeout: 5 * time.Minute,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.configFile, "config", "",
		"Path to the configuration file, defaults to ~/.adl/config.yaml.")
	rootCmd.PersistentFlags().BoolVarP(&rootArgs.verbose, "verbose", "v", false,
		"Log every protocol step and exchanged document.")
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", rootArgs.timeout,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("✗ %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.SugaredLogger, error) {
	if rootArgs.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return logger.Sugar(), nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// session bundles what every command needs. Callers must call close.
type session struct {
	agent *agent.Agent
	log   *zap.SugaredLogger
}

func newSession() (*session, error) {
	log, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("unable to create logger: %w", err)
	}

	config, err := types.NewConfigManager(rootArgs.configFile).LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(config.DataDir, log)
	if err != nil {
		return nil, err
	}

	a, err := agent.NewAgent(config, db, log)
	if err != nil {
		return nil, err
	}
	return &session{agent: a, log: log}, nil
}

func (s *session) close() {
	if err := s.agent.Close(); err != nil {
		s.log.Debugw("Failed to close agent", "error", err)
	}
	_ = s.log.Sync()
}

// report prints the flow outcome as a single line.
func report(result agent.Result) error {
	if !result.OK {
		return fmt.Errorf("%s", result.Message)
	}
	rootCmd.Println(`✔`, result.Message)
	return nil
}

const (
	outputTable = "table"
	outputYAML  = "yaml"
)

// printList writes v as YAML or, by default, as the given table.
func printList(writer io.Writer, format string, v any, header []string, rows [][]string) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(writer)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("unable to encode output: %w", err)
		}
		return enc.Close()
	case outputTable, "":
		printTable(writer, header, rows)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q, use %s or %s", format, outputTable, outputYAML)
	}
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
