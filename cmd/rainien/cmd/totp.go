package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cam1McH/RainienShare-sub001/auth"
)

var totpSecret string

// totpCmd computes the current code for a shared secret. Development
// tooling: lets an operator confirm a device's clock drift against the
// server without a second authenticator.
var totpCmd = &cobra.Command{
	Use:   "totp",
	Short: "Print the current TOTP code for a base32 secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		if totpSecret == "" {
			return fmt.Errorf("--secret is required")
		}
		now := time.Now()
		for _, step := range []struct {
			label  string
			offset time.Duration
		}{
			{"previous", -30 * time.Second},
			{"current ", 0},
			{"next    ", 30 * time.Second},
		} {
			code, err := auth.TOTPCodeAt(totpSecret, now.Add(step.offset))
			if err != nil {
				return fmt.Errorf("computing code: %w", err)
			}
			fmt.Printf("%s  %s\n", step.label, code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(totpCmd)
	totpCmd.Flags().StringVar(&totpSecret, "secret", "", "Base32-encoded TOTP secret")
}
