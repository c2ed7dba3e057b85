package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/dronerecon/internal/services"
	"github.com/soaringjerry/dronerecon/internal/utils"
)

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "admin",
		Short:       "Admin credential helpers",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	hash := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash to configure as admin.password_hash",
		Long:  "Reads the password from the first line of stdin and prints its bcrypt hash.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("read password from stdin")
			}
			password := strings.TrimRight(line, "\r\n")
			h, err := services.HashAdminPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.AddCommand(hash)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			commit := utils.SafeEnv("DRONERECON_COMMIT", "unknown")
			built := utils.SafeEnv("DRONERECON_BUILD_TIME", "unknown")
			fmt.Fprintf(cmd.OutOrStdout(), "commit %s, built %s\n", commit, built)
		},
	}
}
