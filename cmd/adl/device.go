package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/libreadept/adl/agent"
	"github.com/libreadept/adl/sdk/models"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage the devices activated for the current account",
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the devices of the current account",
	Args:  cobra.NoArgs,
	RunE:  deviceListCmdRun,
}

var deviceRegisterCmd = &cobra.Command{
	Use:   "register [mount]",
	Short: "Activate a mounted e-reader for the current account",
	Example: `  # Activate the reader mounted under /media/reader
  adl device register /media/reader
`,
	Args: cobra.ExactArgs(1),
	RunE: deviceRegisterCmdRun,
}

var deviceListArgs struct {
	output string
}

func init() {
	deviceListCmd.Flags().StringVarP(&deviceListArgs.output, "output", "o", outputTable,
		"Output format, one of table or yaml.")
	deviceCmd.AddCommand(deviceListCmd, deviceRegisterCmd)
	rootCmd.AddCommand(deviceCmd)
}

func deviceListCmdRun(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	account, devices, err := s.agent.ListDevices()
	if err != nil {
		return err
	}
	if deviceListArgs.output == outputYAML {
		return printList(cmd.OutOrStdout(), outputYAML, account, nil, nil)
	}
	rootCmd.Println("Account", account.URN)
	return printList(cmd.OutOrStdout(), deviceListArgs.output, devices,
		[]string{"name", "type", "device id"}, deviceRows(devices))
}

func deviceRows(devices []*models.Device) [][]string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.Name, d.Type, d.DeviceID})
	}
	return rows
}

func deviceRegisterCmdRun(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	device, err := s.agent.RegisterReader(ctx, args[0])
	msg := ""
	if err == nil {
		msg = fmt.Sprintf("Activated %s (%s)", device.Name, device.DeviceID)
	}
	return report(agent.NewResult(err, msg))
}
