package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twieland/mailpilot/internal/config"
	"github.com/twieland/mailpilot/internal/google"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Gmail OAuth credentials",
	}
	cmd.PersistentFlags().StringVar(&account, "account", "default", "Account name")

	urlCmd := &cobra.Command{
		Use:   "url",
		Short: "Print the OAuth URL to authorize Gmail access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
			}

			store := google.NewStore(account, cfg.GoogleClientID, cfg.GoogleClientSecret)
			fmt.Printf("Visit this URL to authorize Gmail access for account %q:\n\n%s\n\n", account, store.AuthURL())
			fmt.Println("Then run: mailpilot auth save <code>")
			return nil
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save <code>",
		Short: "Exchange an authorization code and persist the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
			}

			store := google.NewStore(account, cfg.GoogleClientID, cfg.GoogleClientSecret)
			if err := store.SaveAuthCode(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}
			fmt.Printf("Token saved for account %q. You can now run 'mailpilot run'.\n", account)
			return nil
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Remove the stored credential for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			store := google.NewStore(account, cfg.GoogleClientID, cfg.GoogleClientSecret)
			if err := store.Invalidate(); err != nil {
				return err
			}
			fmt.Printf("Credential removed for account %q.\n", account)
			return nil
		},
	}

	cmd.AddCommand(urlCmd)
	cmd.AddCommand(saveCmd)
	cmd.AddCommand(revokeCmd)
	return cmd
}
