package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	rethttp "github.com/GrishaDaradjanovv/Dani/internal/http"
	"github.com/GrishaDaradjanovv/Dani/internal/service"
	"github.com/spf13/cobra"
)

func newCartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage your cart",
	}
	cmd.AddCommand(
		newCartListCmd(app),
		newCartAddCmd(app),
		newCartUpdateCmd(app),
		newCartRemoveCmd(app),
		newCartClearCmd(app),
		newCartCheckoutCmd(app),
	)
	return cmd
}

func newCartListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			items, err := app.Cart.FetchCart(ctx)
			if err != nil {
				return errors.New(userMessage(err, "could not load your cart"))
			}
			printCart(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

func printCart(out io.Writer, items []domain.CartItem) {
	if len(items) == 0 {
		printTitle(out, "Your cart is empty.")
		printMuted(out, "Browse with `wellness videos list` or `wellness shop list`.")
		return
	}

	rows := make([][]string, 0, len(items))
	physical := false
	for _, it := range items {
		rows = append(rows, []string{
			it.CartItemID,
			string(it.ItemType),
			it.Name,
			strconv.Itoa(it.Quantity),
			domain.FormatMoney(it.Price),
			domain.FormatMoney(it.Subtotal()),
		})
		physical = physical || it.ItemType.IsPhysical()
	}
	printTable(out, []string{"ID", "TYPE", "NAME", "QTY", "PRICE", "SUBTOTAL"}, rows)

	fmt.Fprintf(out, "Subtotal: %s\n", priceStyle.Render(domain.FormatMoney(service.Subtotal(items))))
	if physical {
		printMuted(out, "Physical items need a shipping address at checkout.")
	}
}

func newCartAddCmd(app *App) *cobra.Command {
	var quantity int
	cmd := &cobra.Command{
		Use:   "add <video|shop> <item_id>",
		Short: "Add a video or shop item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			itemType := domain.ItemType(args[0])
			if err := app.Cart.AddItem(ctx, itemType, args[1], quantity); err != nil {
				return errors.New(userMessage(err, "could not add to cart"))
			}
			printOK(cmd.OutOrStdout(), "Added to cart.")
			return nil
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "quantity (shop items only)")
	return cmd
}

func newCartUpdateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update <cart_item_id> <quantity>",
		Short: "Change a quantity; 0 removes the item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %q", args[1])
			}
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			if _, err := app.Cart.FetchCart(ctx); err != nil {
				return errors.New(userMessage(err, "could not load your cart"))
			}
			if err := app.Cart.UpdateQuantity(ctx, args[0], quantity); err != nil {
				return errors.New(userMessage(err, "could not update the cart"))
			}
			printCart(cmd.OutOrStdout(), app.Cart.Items())
			return nil
		},
	}
}

func newCartRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <cart_item_id>",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			if err := app.Cart.RemoveItem(ctx, args[0]); err != nil {
				return errors.New(userMessage(err, "could not remove the item"))
			}
			printOK(cmd.OutOrStdout(), "Removed from cart.")
			return nil
		},
	}
}

func newCartClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			if err := app.Cart.Clear(ctx); err != nil {
				return errors.New(userMessage(err, "could not clear the cart"))
			}
			printOK(cmd.OutOrStdout(), "Cart cleared.")
			return nil
		},
	}
}

func newCartCheckoutCmd(app *App) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Pay for everything in the cart",
		Long: `Start payment for the whole cart. Carts with shop items need a shipping
address: pass it with flags, or fill in the form when running in a terminal.

Examples:
  wellness cart checkout --wait
  wellness cart checkout --full-name "Ana Lee" --address-line1 "1 Main St" \
    --city Springfield --state IL --postal-code 62701 --country US --phone 555-0100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			items, err := app.Cart.FetchCart(ctx)
			if err != nil {
				return errors.New(userMessage(err, "could not load your cart"))
			}
			if len(items) == 0 {
				printCart(out, items)
				return nil
			}

			res, err := app.Cart.Checkout(ctx, nil)
			if err != nil {
				return errors.New(userMessage(err, "checkout failed"))
			}
			if res.NeedsShipping {
				addr, err := collectShipping(cmd)
				if err != nil {
					return err
				}
				if res, err = app.Cart.Checkout(ctx, &addr); err != nil {
					return errors.New(userMessage(err, "checkout failed"))
				}
			}

			printCheckout(out, res.URL, res.SessionID)
			if !wait {
				return nil
			}
			return waitForReturn(cmd, app, rethttp.EventCart, res.SessionID)
		},
	}
	addShippingFlags(cmd)
	cmd.Flags().BoolVar(&wait, "wait", false, "run the return server and wait for the payment result")
	return cmd
}

func printCheckout(out io.Writer, url, sessionID string) {
	printTitle(out, "Complete your payment here:")
	fmt.Fprintln(out, url)
	printMuted(out, "Checkout session: %s", sessionID)
}
