package cmd

import (
	"context"
	"errors"

	"github.com/bugisthegod/techmart-storefront/internal/session"
	"github.com/bugisthegod/techmart-storefront/internal/storefront"
	"github.com/spf13/cobra"
)

var (
	username string
	password string
	email    string
	phone    string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			res := sf.Session.Login(ctx, username, password)
			if !res.Success {
				return outcome(false, res.Message, nil)
			}
			data, _ := res.Data.(session.LoginData)
			return data.User, nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			res := sf.Session.Logout(ctx)
			return outcome(res.Success, res.Message, nil)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			req := session.RegisterRequest{Username: username, Password: password, Email: email, Phone: phone}
			res := sf.Session.Register(ctx, req)
			if !res.Success && res.Errors != nil {
				_ = printJSON(cmd.ErrOrStderr(), res.Errors)
			}
			return outcome(res.Success, res.Message, nil)
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			if !sf.Session.IsAuthenticated(ctx) {
				return nil, errors.New("not logged in")
			}
			return sf.Session.CurrentUser(), nil
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")

	registerCmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	registerCmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	registerCmd.Flags().StringVar(&email, "email", "", "contact email")
	registerCmd.Flags().StringVar(&phone, "phone", "", "contact phone")

	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd)
}
