package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/lazyauth/internal/config"
	"github.com/dropDatabas3/lazyauth/internal/domain/types"
	"github.com/dropDatabas3/lazyauth/internal/jwt"
)

var (
	errInvalidSignature = errors.New("invalid signature")
	errExpired          = errors.New("expired")
)

func newVerifyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verifica un session token e imprime la identidad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			issuer, err := jwt.NewSessionIssuer(jwt.Options{
				Secret:    []byte(cfg.JWT.SecretKey),
				Algorithm: cfg.JWT.Algorithm,
				Issuer:    cfg.JWT.Issuer,
			})
			if err != nil {
				return err
			}

			id, err := issuer.Verify(strings.TrimSpace(args[0]))
			if err != nil {
				var exp *types.ExpiredTokenError
				if errors.As(err, &exp) {
					return errExpired
				}
				return errInvalidSignature
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(id)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Archivo YAML de configuración (opcional)")
	return cmd
}
