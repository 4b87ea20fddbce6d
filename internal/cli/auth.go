package cli

import (
	"errors"
	"fmt"

	"github.com/GrishaDaradjanovv/Dani/internal/client"
	rethttp "github.com/GrishaDaradjanovv/Dani/internal/http"
	"github.com/GrishaDaradjanovv/Dani/internal/service"
	"github.com/spf13/cobra"
)

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			sess := app.Sessions.CheckAuth(cmd.Context())
			if !sess.Authenticated() {
				printMuted(out, "Not signed in.")
				return nil
			}
			u := sess.User
			role := "member"
			if u.IsAdmin {
				role = "admin"
			}
			fmt.Fprintf(out, "%s <%s> (%s, %s)\n", u.Name, u.Email, u.ID, role)
			return nil
		},
	}
}

func newLoginCmd(app *App) *cobra.Command {
	var email, password, callbackURL string
	var browser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Long: `Sign in with email and password, or through the identity provider.

Examples:
  wellness login --email ana@example.com
  wellness login --browser
  wellness login --callback-url 'http://localhost:8765/dashboard#session_id=...'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case callbackURL != "":
				res, err := app.Sessions.ExchangeOAuthSession(ctx, callbackURL)
				if err != nil {
					return fmt.Errorf("sign-in failed: %w", err)
				}
				printOK(out, "Signed in as %s.", res.User.Name)
				return nil

			case browser:
				printTitle(out, "Open this link to sign in:")
				fmt.Fprintln(out, app.browserLoginURL())
				printMuted(out, "Waiting for the browser on %s ...", app.Config.OriginURL)

				ev, err := app.awaitReturn(ctx, func(ev rethttp.ReturnEvent) bool {
					return ev.Kind == rethttp.EventLogin
				})
				if err != nil {
					return err
				}
				if ev.Err != nil {
					return fmt.Errorf("sign-in failed: %w", ev.Err)
				}
				printOK(out, "Signed in as %s.", ev.User.Name)
				return nil
			}

			if (email == "" || password == "") && isInteractive(cmd.InOrStdin()) {
				if err := promptCredentials(&email, &password); err != nil {
					return err
				}
			}
			user, err := app.Sessions.LoginWithPassword(ctx, email, password)
			if err != nil {
				return errors.New(userMessage(err, "login failed"))
			}
			printOK(out, "Signed in as %s.", user.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "URL the identity provider redirected to")
	cmd.Flags().BoolVar(&browser, "browser", false, "sign in through the identity provider in a browser")
	cmd.MarkFlagsMutuallyExclusive("callback-url", "browser")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app.Sessions.CheckAuth(ctx)
			app.Sessions.Logout(ctx)
			printOK(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newRegisterCmd(app *App) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (email == "" || password == "") && isInteractive(cmd.InOrStdin()) {
				if err := promptCredentials(&email, &password); err != nil {
					return err
				}
			}
			user, err := app.Sessions.Register(cmd.Context(), name, email, password)
			if err != nil {
				return errors.New(userMessage(err, "registration failed"))
			}
			printOK(cmd.OutOrStdout(), "Welcome, %s! You are signed in.", user.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (at least 6 characters)")
	return cmd
}

func newPasswordCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover or reset a password",
	}

	var email string
	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Sessions.ForgotPassword(cmd.Context(), email); err != nil {
				return errors.New(userMessage(err, "could not request a reset link"))
			}
			printOK(cmd.OutOrStdout(), "If that address has an account, a reset link is on its way.")
			return nil
		},
	}
	forgot.Flags().StringVar(&email, "email", "", "account email")

	var token, newPassword string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Sessions.ResetPassword(cmd.Context(), token, newPassword); err != nil {
				return errors.New(userMessage(err, "could not reset password"))
			}
			printOK(cmd.OutOrStdout(), "Password updated. You can sign in now.")
			return nil
		},
	}
	reset.Flags().StringVar(&token, "token", "", "reset token from the email")
	reset.Flags().StringVar(&newPassword, "new-password", "", "new password (at least 6 characters)")
	_ = reset.MarkFlagRequired("token")

	cmd.AddCommand(forgot, reset)
	return cmd
}

// userMessage is what a person should read for err: local validation text,
// the backend's detail, or fallback.
func userMessage(err error, fallback string) string {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrMissingCredentials),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrVideoQuantity),
		errors.Is(err, service.ErrItemNotInCart),
		errors.Is(err, service.ErrInvalidOrderStatus),
		errors.Is(err, service.ErrEmptyComment),
		errors.Is(err, ErrNotSignedIn),
		errors.Is(err, ErrNotAdmin):
		return err.Error()
	}
	return clientMessage(err, fallback)
}

func clientMessage(err error, fallback string) string {
	if msg := client.Message(err, ""); msg != "" {
		return msg
	}
	switch {
	case errors.Is(err, client.ErrUnavailable):
		return "the shop is unavailable right now, try again shortly"
	case client.IsUnauthorized(err):
		return ErrNotSignedIn.Error()
	case client.IsForbidden(err):
		return ErrNotAdmin.Error()
	}
	return fallback
}
