package cli

import (
	"context"
	"errors"
	"fmt"

	rethttp "github.com/GrishaDaradjanovv/Dani/internal/http"
	"github.com/GrishaDaradjanovv/Dani/internal/poller"
	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the return server until interrupted",
		Long: `Run the local server the identity provider and the payment processor
send the browser back to. Every sign-in and payment result is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			h := app.returnHandler()
			srv := rethttp.NewServer(rethttp.ServerConfig{
				Addr:         app.Config.ReturnAddr,
				WriteTimeout: returnTimeout(app.Config),
			}, rethttp.NewRouter(h), app.Logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndRun(ctx) }()

			printTitle(out, "Return server listening on "+app.Config.OriginURL)
			printMuted(out, "Sign in at %s", app.browserLoginURL())

			for {
				select {
				case ev := <-h.Events():
					printEvent(cmd, ev)
				case err := <-errCh:
					if err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				}
			}
		},
	}
}

func printEvent(cmd *cobra.Command, ev rethttp.ReturnEvent) {
	out := cmd.OutOrStdout()
	if ev.Kind == rethttp.EventLogin {
		if ev.Err != nil {
			printWarn(out, "sign-in failed: %v", ev.Err)
			return
		}
		printOK(out, "signed in as %s", ev.User.Name)
		return
	}
	line := fmt.Sprintf("%s %s: %s after %d checks", ev.Kind, ev.SessionID, ev.Result.State, ev.Result.Attempts)
	if ev.Result.State == poller.StateSuccess {
		printOK(out, "%s", line)
	} else {
		printWarn(out, "%s", line)
	}
}
