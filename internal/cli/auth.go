package cli

import (
	"fmt"

	"github.com/cuongbtq/repair-tracker/internal/client/form"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if username, err = app.prompt("Username", username); err != nil {
				return err
			}
			if password, err = app.prompt("Password", password); err != nil {
				return err
			}

			if err := form.Login.Validate(form.LoginValues(username, password)); err != nil {
				return err
			}

			if err := app.provider.Login(cmd.Context(), username, password); err != nil {
				return err
			}

			fmt.Fprintf(app.out, "Signed in as %s\n", app.provider.User().Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(app *App) *cobra.Command {
	var username, email, password, confirm string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if username, err = app.prompt("Username", username); err != nil {
				return err
			}
			if email, err = app.prompt("Email", email); err != nil {
				return err
			}
			if password, err = app.prompt("Password", password); err != nil {
				return err
			}
			if confirm, err = app.prompt("Confirm password", confirm); err != nil {
				return err
			}

			values := form.RegisterValues(username, email, password, confirm)
			if err := form.Register.Validate(values); err != nil {
				return err
			}

			if err := app.provider.Register(cmd.Context(), username, email, password); err != nil {
				return err
			}

			fmt.Fprintf(app.out, "Registered and signed in as %s\n", app.provider.User().Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "Password again (prompted when omitted)")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.provider.Logout(); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			fmt.Fprintln(app.out, "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.requireSession()
			if err != nil {
				return err
			}
			u := s.User()
			fmt.Fprintf(app.out, "%s <%s> (id %d)\n", u.Username, u.Email, u.ID)
			return nil
		},
	}
}
