package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "rainien",
	Short: "Rainien is the authentication service for the Rainien platform",
	Long: `The Rainien auth server: credential login with account lockout,
mandatory TOTP two-factor authentication, cookie sessions, CSRF
protection, and single-use password reset.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
