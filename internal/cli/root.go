package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "wellness",
		Short: "Client for the wellness shop",
		Long: `wellness talks to the wellness shop backend: sign in, browse videos,
shop items and the blog, manage your cart and pay.

Payments and browser sign-in finish in a web browser. The return server
(wellness serve, or --wait on purchase commands) receives the browser when
it comes back and confirms the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newWhoamiCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newRegisterCmd(app),
		newPasswordCmd(app),
		newCartCmd(app),
		newPaymentCmd(app),
		newVideosCmd(app),
		newShopCmd(app),
		newBlogCmd(app),
		newPagesCmd(app),
		newAdminCmd(app),
		newServeCmd(app),
	)
	return root
}
