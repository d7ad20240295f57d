// Command lazyauth sirve el flujo OAuth2 (login, callback, sesión) y trae
// utilidades para operar: generar el secreto JWT y verificar tokens.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version se setea con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "lazyauth",
		Short:         "OAuth2 relying party con sesiones JWT sin estado",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Archivo .env a cargar (default: .env si existe)")

	root.AddCommand(newServeCmd(), newSecretCmd(), newVerifyCmd())
	return root
}

// loadEnvFile carga un .env sin pisar variables ya definidas. Sin path,
// un .env ausente no es error.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
