package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/libreadept/adl/agent"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Create an account and activate this computer",
	Example: `  # Anonymous account
  adl login

  # Adobe ID account, the password is read from the terminal
  adl login -u someone@example.com
`,
	Args: cobra.NoArgs,
	RunE: loginCmdRun,
}

type loginFlags struct {
	username string
	password string
}

var loginArgs loginFlags

func init() {
	loginCmd.Flags().StringVarP(&loginArgs.username, "username", "u", "",
		"Adobe ID to sign in with, an anonymous account is created when empty.")
	loginCmd.Flags().StringVarP(&loginArgs.password, "password", "p", "",
		"Adobe ID password, prompted for when omitted.")
	rootCmd.AddCommand(loginCmd)
}

func loginCmdRun(cmd *cobra.Command, args []string) error {
	creds := agent.Credentials{Username: loginArgs.username, Password: loginArgs.password}
	if creds.Username != "" && creds.Password == "" {
		password, err := readPassword()
		if err != nil {
			return err
		}
		creds.Password = password
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	account, err := s.agent.Login(ctx, creds)
	msg := ""
	if err == nil {
		msg = fmt.Sprintf("Logged in as %s", account.URN)
	}
	return report(agent.NewResult(err, msg))
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password is required, use --password when stdin is not a terminal")
	}
	rootCmd.Print("Password: ")
	password, err := term.ReadPassword(fd)
	rootCmd.Println()
	if err != nil {
		return "", fmt.Errorf("unable to read password: %w", err)
	}
	return string(password), nil
}
