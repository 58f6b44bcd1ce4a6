package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zelosify/zelosify/server/internal/login"
	"github.com/zelosify/zelosify/server/internal/users"
)

func newTOTPCommand(opts *rootOptions) *cobra.Command {
	totpCmd := &cobra.Command{
		Use:   "totp",
		Short: "Manage TOTP enrolment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var account, issuer, userID string
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a TOTP secret and provisioning URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := login.GenerateSecret(issuer, account)
			if err != nil {
				return fmt.Errorf("generate totp secret: %w", err)
			}
			cmd.Printf("secret: %s\n", key.Secret())
			cmd.Printf("uri:    %s\n", key.URL())

			if userID == "" {
				return nil
			}
			pool, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := users.NewPostgresUserRepository(pool).SetTOTPSecret(cmd.Context(), userID, key.Secret()); err != nil {
				return fmt.Errorf("store totp secret for %s: %w", userID, err)
			}
			cmd.Printf("Stored secret on user %s.\n", userID)
			return nil
		},
	}
	generateCmd.Flags().StringVar(&account, "account", "", "Account name shown in the authenticator app (usually the email).")
	generateCmd.Flags().StringVar(&issuer, "issuer", "Zelosify", "Issuer shown in the authenticator app.")
	generateCmd.Flags().StringVar(&userID, "user", "", "Store the secret on this user id.")
	_ = generateCmd.MarkFlagRequired("account")

	totpCmd.AddCommand(generateCmd)
	return totpCmd
}
