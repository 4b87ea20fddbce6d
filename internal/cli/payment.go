package cli

import (
	"errors"
	"fmt"
	"io"

	rethttp "github.com/GrishaDaradjanovv/Dani/internal/http"
	"github.com/GrishaDaradjanovv/Dani/internal/poller"
	"github.com/spf13/cobra"
)

func newPaymentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Check payments",
	}

	var cart bool
	wait := &cobra.Command{
		Use:   "wait <session_id>",
		Short: "Poll a checkout session until it is paid or gives up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}

			var src poller.StatusSource = poller.CheckoutStatusSource{API: app.API}
			if cart {
				src = poller.CartOrderSource{API: app.API}
			}

			printMuted(cmd.OutOrStdout(), "Checking payment status...")
			res := app.Poller.Run(ctx, args[0], src)
			return printPollResult(cmd.OutOrStdout(), res)
		},
	}
	wait.Flags().BoolVar(&cart, "cart", false, "the session pays for a whole cart")

	cmd.AddCommand(wait)
	return cmd
}

// waitForReturn serves the return pages until the browser comes back for
// sessionID.
func waitForReturn(cmd *cobra.Command, app *App, kind rethttp.EventKind, sessionID string) error {
	out := cmd.OutOrStdout()
	printMuted(out, "Waiting for the browser on %s ...", app.Config.OriginURL)

	ev, err := app.awaitReturn(cmd.Context(), func(ev rethttp.ReturnEvent) bool {
		return ev.Kind == kind && ev.SessionID == sessionID
	})
	if err != nil {
		return err
	}
	return printPollResult(out, ev.Result)
}

func printPollResult(out io.Writer, res poller.Result) error {
	switch res.State {
	case poller.StateSuccess:
		printOK(out, "Payment confirmed. Thank you!")
		return nil
	case poller.StateFailed:
		if errors.Is(res.Err, poller.ErrMissingSessionID) {
			return res.Err
		}
		if res.Last != nil && res.Last.IsExpired() {
			return fmt.Errorf("the checkout session expired")
		}
		return fmt.Errorf("payment could not be confirmed after %d checks", res.Attempts)
	default:
		printWarn(out, "Stopped before the payment was confirmed.")
		return res.Err
	}
}
