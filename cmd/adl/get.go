package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/libreadept/adl/agent"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Download the book an ACSM token grants",
	Example: `  # Write the licensed book to the configured output directory
  adl get -f URLLink.acsm

  # Print the signed fulfill request without sending it
  adl get -f URLLink.acsm -n
`,
	Args: cobra.NoArgs,
	RunE: getCmdRun,
}

type getFlags struct {
	file      string
	outputDir string
	dryRun    bool
}

var getArgs getFlags

func init() {
	getCmd.Flags().StringVarP(&getArgs.file, "file", "f", "",
		"Path to the ACSM file.")
	getCmd.Flags().StringVarP(&getArgs.outputDir, "output", "o", "",
		"Directory to write the book to, overrides the configured output directory.")
	getCmd.Flags().BoolVarP(&getArgs.dryRun, "dry-run", "n", false,
		"Build the fulfill request and print it instead of sending it.")
	_ = getCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(getCmd)
}

func getCmdRun(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	out, err := s.agent.Fulfill(ctx, agent.FulfillOptions{
		ACSMFile:  getArgs.file,
		OutputDir: getArgs.outputDir,
		DryRun:    getArgs.dryRun,
	})
	if err != nil {
		return report(agent.NewResult(err, ""))
	}

	if getArgs.dryRun {
		if _, err := cmd.OutOrStdout().Write(append(out.Request, '\n')); err != nil {
			return err
		}
		return nil
	}
	return report(agent.NewResult(nil, fmt.Sprintf("Created %s", out.Path)))
}
