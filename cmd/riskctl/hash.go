package main

import (
	"bufio"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwolfsohn/Atlas-Sentinel/services"
)

var hashCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash an operator password read from stdin",
	Long: `Reads one line from stdin and prints its bcrypt hash, ready for
OPERATOR_PASSWORD_HASH. The engine is not started.`,
	Args: cobra.NoArgs,
	// Overrides the root hook; no engine is needed.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, _ []string) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}
		return errors.New("no password on stdin")
	}
	password := strings.TrimRight(scanner.Text(), "\r")
	if password == "" {
		return errors.New("password is empty")
	}

	hash, err := services.HashPassword(password)
	if err != nil {
		return err
	}
	cmd.Println(hash)
	return nil
}
