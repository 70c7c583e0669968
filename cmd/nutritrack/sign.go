package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nutritrack/internal/config"
	"nutritrack/internal/wompi"
)

// signCmd prints the checksum a webhook payload must carry, for replaying
// deliveries against a local server.
func signCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the Wompi checksum of a webhook payload",
		Long: `Compute the checksum of a webhook payload with WOMPI_EVENT_SECRET.

Examples:
  nutritrack sign --file event.json
  cat event.json | nutritrack sign`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := config.LoadWompiEventSecret()
			if secret == "" {
				return errors.New("WOMPI_EVENT_SECRET is not set")
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open payload: %w", err)
				}
				defer f.Close()
				in = f
			}
			body, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			event, err := wompi.ParseEvent(body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wompi.NewVerifier(secret).Checksum(event))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "payload file (defaults to stdin)")
	return cmd
}
