package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"casehub-backend/internal/auth"
	"github.com/spf13/cobra"
)

// NewHashPasswordCommand prints a bcrypt hash for ADMIN_PASSWORD_HASH. The
// password is read from the first line of stdin unless --password is set.
func NewHashPasswordCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given on stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password to hash (default: read from stdin)")
	return cmd
}
