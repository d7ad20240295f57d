package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/lazyauth/internal/jwt"
	tokens "github.com/dropDatabas3/lazyauth/internal/security/token"
)

func newSecretCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Genera un valor aleatorio para JWT_SECRET_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < jwt.MinSecretBytes {
				return fmt.Errorf("--bytes must be at least %d", jwt.MinSecretBytes)
			}
			s, err := tokens.GenerateOpaqueToken(n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "bytes", 48, "Bytes de entropía")
	return cmd
}
