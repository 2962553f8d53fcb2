package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{Use: "users", Short: "Account operations"}

	// register
	var username, email, password string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || email == "" || password == "" {
				return fmt.Errorf("--username, --email and --password required")
			}
			res, err := newClient().Register(cmd.Context(), username, email, password, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "registered %s\nexport CONSULTCTL_TOKEN=%s\n", res.User.Email, res.Token)
			return nil
		},
	}
	registerCmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	registerCmd.Flags().StringVarP(&email, "email", "e", "", "Email (required)")
	registerCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	usersCmd.AddCommand(registerCmd)

	// login
	var loginEmail, loginPassword string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if loginEmail == "" || loginPassword == "" {
				return fmt.Errorf("--email and --password required")
			}
			res, err := newClient().Login(cmd.Context(), loginEmail, loginPassword)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "export CONSULTCTL_TOKEN=%s\n", res.Token)
			return nil
		},
	}
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Email (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (required)")
	usersCmd.AddCommand(loginCmd)

	// profile
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the authenticated user's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := newClient().Profile(cmd.Context())
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(user, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	usersCmd.AddCommand(profileCmd)

	rootCmd.AddCommand(usersCmd)
}
