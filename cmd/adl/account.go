package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/libreadept/adl/agent"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the stored accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored accounts, the current one is marked with *",
	Args:  cobra.NoArgs,
	RunE:  accountListCmdRun,
}

var accountUseCmd = &cobra.Command{
	Use:   "use [urn]",
	Short: "Select the account used by get and device register",
	Args:  cobra.ExactArgs(1),
	RunE:  accountUseCmdRun,
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete [urn]",
	Short: "Remove an account and its devices from the local store",
	Args:  cobra.ExactArgs(1),
	RunE:  accountDeleteCmdRun,
}

var accountListArgs struct {
	output string
}

func init() {
	accountListCmd.Flags().StringVarP(&accountListArgs.output, "output", "o", outputTable,
		"Output format, one of table or yaml.")
	accountCmd.AddCommand(accountListCmd, accountUseCmd, accountDeleteCmd)
	rootCmd.AddCommand(accountCmd)
}

func accountListCmdRun(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	entries, err := s.agent.ListAccounts()
	if err != nil {
		return err
	}
	return printList(cmd.OutOrStdout(), accountListArgs.output, entries,
		[]string{"", "urn", "method", "id", "devices"}, accountRows(entries))
}

func accountRows(entries []agent.AccountEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		marker := ""
		if e.Current {
			marker = "*"
		}
		rows = append(rows, []string{marker, e.URN, e.SignMethod, e.SignID, strconv.Itoa(e.Devices)})
	}
	return rows
}

func accountUseCmdRun(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	err = s.agent.UseAccount(args[0])
	return report(agent.NewResult(err, "Current account is "+args[0]))
}

func accountDeleteCmdRun(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	err = s.agent.DeleteAccount(args[0])
	return report(agent.NewResult(err, "Deleted "+args[0]))
}
