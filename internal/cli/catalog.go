package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	rethttp "github.com/GrishaDaradjanovv/Dani/internal/http"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func newVideosCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Browse and buy videos",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app.Sessions.CheckAuth(ctx)
			videos, err := app.Catalog.ListVideos(ctx)
			if err != nil {
				return errors.New(userMessage(err, "could not load videos"))
			}
			printVideos(cmd, videos)
			return nil
		},
	}

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List the videos you own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			videos, err := app.Catalog.MyVideos(ctx)
			if err != nil {
				return errors.New(userMessage(err, "could not load your videos"))
			}
			printVideos(cmd, videos)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <video_id>",
		Short: "Show a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app.Sessions.CheckAuth(ctx)
			v, err := app.Catalog.GetVideo(ctx, args[0])
			if err != nil {
				return errors.New(userMessage(err, "could not load the video"))
			}
			out := cmd.OutOrStdout()
			printTitle(out, v.Title)
			fmt.Fprintf(out, "%s · %s · %s\n", v.Category, v.Duration, priceStyle.Render(domain.FormatMoney(v.Price)))
			fmt.Fprintln(out, v.Description)
			if v.IsPurchased && v.VideoURL != "" {
				printOK(out, "Watch: %s", v.VideoURL)
			}
			return nil
		},
	}

	var wait bool
	buy := &cobra.Command{
		Use:   "buy <video_id>",
		Short: "Buy a single video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			session, err := app.Catalog.BuyVideo(ctx, args[0])
			if err != nil {
				return errors.New(userMessage(err, "could not start checkout"))
			}
			printCheckout(cmd.OutOrStdout(), session.URL, session.SessionID)
			if !wait {
				return nil
			}
			return waitForReturn(cmd, app, rethttp.EventPayment, session.SessionID)
		},
	}
	buy.Flags().BoolVar(&wait, "wait", false, "run the return server and wait for the payment result")

	cmd.AddCommand(list, mine, show, buy)
	return cmd
}

func printVideos(cmd *cobra.Command, videos []domain.Video) {
	out := cmd.OutOrStdout()
	if len(videos) == 0 {
		printMuted(out, "No videos.")
		return
	}
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		owned := ""
		if v.IsPurchased {
			owned = "yes"
		}
		rows = append(rows, []string{v.ID, v.Title, v.Category, v.Duration, domain.FormatMoney(v.Price), owned})
	}
	printTable(out, []string{"ID", "TITLE", "CATEGORY", "DURATION", "PRICE", "OWNED"}, rows)
}

func newShopCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Browse and buy shop items",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List shop items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := app.Catalog.ListShopItems(cmd.Context())
			if err != nil {
				return errors.New(userMessage(err, "could not load the shop"))
			}
			if len(items) == 0 {
				printMuted(cmd.OutOrStdout(), "The shop is empty.")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, it := range items {
				rows = append(rows, []string{it.ID, it.Name, it.Category, domain.FormatMoney(it.Price), strconv.Itoa(it.Stock)})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "CATEGORY", "PRICE", "STOCK"}, rows)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <item_id>",
		Short: "Show a shop item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it, err := app.Catalog.GetShopItem(cmd.Context(), args[0])
			if err != nil {
				return errors.New(userMessage(err, "could not load the item"))
			}
			out := cmd.OutOrStdout()
			printTitle(out, it.Name)
			fmt.Fprintf(out, "%s · %s · %d in stock\n", it.Category, priceStyle.Render(domain.FormatMoney(it.Price)), it.Stock)
			fmt.Fprintln(out, it.Description)
			return nil
		},
	}

	var quantity int
	var wait bool
	buy := &cobra.Command{
		Use:   "buy <item_id>",
		Short: "Buy one shop item directly, outside the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			addr, err := collectShipping(cmd)
			if err != nil {
				return err
			}
			session, err := app.Catalog.BuyShopItem(ctx, args[0], quantity, addr)
			if err != nil {
				return errors.New(userMessage(err, "could not start checkout"))
			}
			printCheckout(cmd.OutOrStdout(), session.URL, session.SessionID)
			if !wait {
				return nil
			}
			return waitForReturn(cmd, app, rethttp.EventShopOrder, session.SessionID)
		},
	}
	addShippingFlags(buy)
	buy.Flags().IntVarP(&quantity, "quantity", "q", 1, "quantity")
	buy.Flags().BoolVar(&wait, "wait", false, "run the return server and wait for the payment result")

	orders := &cobra.Command{
		Use:   "orders",
		Short: "List your shop orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			list, err := app.Catalog.MyOrders(ctx)
			if err != nil {
				return errors.New(userMessage(err, "could not load your orders"))
			}
			printOrders(cmd, list)
			return nil
		},
	}

	cmd.AddCommand(list, show, buy, orders)
	return cmd
}

func printOrders(cmd *cobra.Command, orders []domain.Order) {
	out := cmd.OutOrStdout()
	if len(orders) == 0 {
		printMuted(out, "No orders yet.")
		return
	}
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{
			o.ID,
			o.ItemName,
			strconv.Itoa(o.Quantity),
			domain.FormatMoney(o.TotalAmount),
			string(o.Status),
			o.CreatedAt.Format(dateLayout),
		})
	}
	printTable(out, []string{"ORDER", "ITEM", "QTY", "TOTAL", "STATUS", "DATE"}, rows)
}

func newBlogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blog",
		Short: "Read and comment on the blog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List blog posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			posts, err := app.Catalog.ListBlogPosts(cmd.Context())
			if err != nil {
				return errors.New(userMessage(err, "could not load the blog"))
			}
			if len(posts) == 0 {
				printMuted(cmd.OutOrStdout(), "No posts yet.")
				return nil
			}
			rows := make([][]string, 0, len(posts))
			for _, p := range posts {
				rows = append(rows, []string{p.ID, p.Title, p.AuthorName, p.CreatedAt.Format(dateLayout), strconv.Itoa(p.CommentsCount)})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "AUTHOR", "DATE", "COMMENTS"}, rows)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <post_id>",
		Short: "Read a post and its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			post, err := app.Catalog.GetBlogPost(ctx, args[0])
			if err != nil {
				return errors.New(userMessage(err, "could not load the post"))
			}
			comments, err := app.Catalog.ListComments(ctx, args[0])
			if err != nil {
				return errors.New(userMessage(err, "could not load comments"))
			}

			out := cmd.OutOrStdout()
			printTitle(out, post.Title)
			printMuted(out, "%s · %s", post.AuthorName, post.CreatedAt.Format(dateLayout))
			fmt.Fprintln(out)
			fmt.Fprintln(out, post.Content)
			fmt.Fprintln(out)
			printTitle(out, fmt.Sprintf("Comments (%d)", len(comments)))
			for _, c := range comments {
				fmt.Fprintf(out, "%s %s\n  %s\n", c.UserName, mutedStyle.Render(c.CreatedAt.Format(dateLayout)), c.Content)
			}
			return nil
		},
	}

	comment := &cobra.Command{
		Use:   "comment <post_id> <text>...",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireUser(ctx); err != nil {
				return err
			}
			if _, err := app.Catalog.AddComment(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
				return errors.New(userMessage(err, "could not post the comment"))
			}
			printOK(cmd.OutOrStdout(), "Comment posted.")
			return nil
		},
	}

	cmd.AddCommand(list, show, comment)
	return cmd
}

func newPagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Read service pages",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List service pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := app.Catalog.ListPages(cmd.Context())
			if err != nil {
				return errors.New(userMessage(err, "could not load pages"))
			}
			rows := make([][]string, 0, len(pages))
			for _, p := range pages {
				rows = append(rows, []string{p.ID, p.Title, p.Subtitle})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "SUBTITLE"}, rows)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <page_id>",
		Short: "Show a service page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := app.Catalog.GetPage(cmd.Context(), args[0])
			if err != nil {
				return errors.New(userMessage(err, "could not load the page"))
			}
			out := cmd.OutOrStdout()
			printTitle(out, page.Title)
			if page.Subtitle != "" {
				printMuted(out, "%s", page.Subtitle)
			}
			fmt.Fprintln(out, page.Content)
			for _, f := range page.Features {
				fmt.Fprintf(out, "  • %s: %s\n", f.Title, f.Description)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
