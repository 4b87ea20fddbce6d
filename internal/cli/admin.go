package cli

import (
	"errors"
	"strings"

	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"github.com/spf13/cobra"
)

func newAdminCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Shop administration (admin accounts only)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.requireAdmin(cmd.Context())
		},
	}

	orders := &cobra.Command{
		Use:   "orders",
		Short: "List every shop order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.Catalog.AdminOrders(cmd.Context())
			if err != nil {
				return errors.New(userMessage(err, "could not load orders"))
			}
			printOrders(cmd, list)
			return nil
		},
	}

	orderStatus := &cobra.Command{
		Use:   "order-status <order_id> <pending|paid|shipped|delivered>",
		Short: "Change an order's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Catalog.UpdateOrderStatus(cmd.Context(), args[0], domain.OrderStatus(args[1])); err != nil {
				return errors.New(userMessage(err, "could not update the order"))
			}
			printOK(cmd.OutOrStdout(), "Order %s is now %s.", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(orders, orderStatus, newAdminVideoCmd(app), newAdminShopCmd(app), newAdminBlogCmd(app), newAdminCommentCmd(app), newAdminPageCmd(app))
	return cmd
}

func newAdminVideoCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "video", Short: "Add or delete videos"}

	var in domain.VideoInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := app.Catalog.CreateVideo(cmd.Context(), in)
			if err != nil {
				return errors.New(userMessage(err, "could not add the video"))
			}
			printOK(cmd.OutOrStdout(), "Added video %s.", v.ID)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&in.Title, "title", "", "title")
	f.StringVar(&in.Description, "description", "", "description")
	f.StringVar(&in.ThumbnailURL, "thumbnail-url", "", "thumbnail image URL")
	f.StringVar(&in.VideoURL, "video-url", "", "video URL")
	f.Float64Var(&in.Price, "price", 0, "price in dollars")
	f.StringVar(&in.Duration, "duration", "", "duration, e.g. 45 min")
	f.StringVar(&in.Category, "category", "", "category")
	_ = add.MarkFlagRequired("title")

	del := &cobra.Command{
		Use:   "delete <video_id>",
		Short: "Delete a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Catalog.DeleteVideo(cmd.Context(), args[0]); err != nil {
				return errors.New(userMessage(err, "could not delete the video"))
			}
			printOK(cmd.OutOrStdout(), "Deleted video %s.", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

func shopItemFlags(cmd *cobra.Command, in *domain.ShopItemInput) {
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "name")
	f.StringVar(&in.Description, "description", "", "description")
	f.Float64Var(&in.Price, "price", 0, "price in dollars")
	f.StringVar(&in.ImageURL, "image-url", "", "image URL")
	f.StringVar(&in.Category, "category", "", "category")
	f.IntVar(&in.Stock, "stock", 0, "units in stock")
	_ = cmd.MarkFlagRequired("name")
}

func newAdminShopCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "shop", Short: "Manage shop items"}

	var addIn domain.ShopItemInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a shop item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			it, err := app.Catalog.CreateShopItem(cmd.Context(), addIn)
			if err != nil {
				return errors.New(userMessage(err, "could not add the item"))
			}
			printOK(cmd.OutOrStdout(), "Added shop item %s.", it.ID)
			return nil
		},
	}
	shopItemFlags(add, &addIn)

	var updateIn domain.ShopItemInput
	update := &cobra.Command{
		Use:   "update <item_id>",
		Short: "Replace a shop item's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.Catalog.UpdateShopItem(cmd.Context(), args[0], updateIn); err != nil {
				return errors.New(userMessage(err, "could not update the item"))
			}
			printOK(cmd.OutOrStdout(), "Updated shop item %s.", args[0])
			return nil
		},
	}
	shopItemFlags(update, &updateIn)

	del := &cobra.Command{
		Use:   "delete <item_id>",
		Short: "Delete a shop item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Catalog.DeleteShopItem(cmd.Context(), args[0]); err != nil {
				return errors.New(userMessage(err, "could not delete the item"))
			}
			printOK(cmd.OutOrStdout(), "Deleted shop item %s.", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, update, del)
	return cmd
}

func newAdminBlogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "blog", Short: "Write or delete blog posts"}

	var in domain.BlogPostInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Publish a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Catalog.CreateBlogPost(cmd.Context(), in)
			if err != nil {
				return errors.New(userMessage(err, "could not publish the post"))
			}
			printOK(cmd.OutOrStdout(), "Published post %s.", p.ID)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&in.Title, "title", "", "title")
	f.StringVar(&in.Content, "content", "", "post body")
	f.StringVar(&in.Excerpt, "excerpt", "", "short summary")
	f.StringVar(&in.CoverImage, "cover-image", "", "cover image URL")
	f.StringVar(&in.Category, "category", "", "category")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("content")

	del := &cobra.Command{
		Use:   "delete <post_id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Catalog.DeleteBlogPost(cmd.Context(), args[0]); err != nil {
				return errors.New(userMessage(err, "could not delete the post"))
			}
			printOK(cmd.OutOrStdout(), "Deleted post %s.", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

func newAdminCommentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "comment", Short: "Moderate comments"}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <comment_id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Catalog.DeleteComment(cmd.Context(), args[0]); err != nil {
				return errors.New(userMessage(err, "could not delete the comment"))
			}
			printOK(cmd.OutOrStdout(), "Deleted comment %s.", args[0])
			return nil
		},
	})
	return cmd
}

func newAdminPageCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "page", Short: "Edit service pages"}

	set := &cobra.Command{
		Use:   "set <page_id>",
		Short: "Change the text of a service page",
		Long:  "Only the flags you pass are sent; other fields keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := make(map[string]any)
			for _, name := range []string{"title", "subtitle", "content", "image-url"} {
				if !cmd.Flags().Changed(name) {
					continue
				}
				v, _ := cmd.Flags().GetString(name)
				fields[strings.ReplaceAll(name, "-", "_")] = v
			}
			if len(fields) == 0 {
				return errors.New("nothing to change, pass at least one of --title, --subtitle, --content, --image-url")
			}
			if _, err := app.Catalog.UpdatePage(cmd.Context(), args[0], fields); err != nil {
				return errors.New(userMessage(err, "could not update the page"))
			}
			printOK(cmd.OutOrStdout(), "Updated page %s.", args[0])
			return nil
		},
	}
	f := set.Flags()
	f.String("title", "", "page title")
	f.String("subtitle", "", "page subtitle")
	f.String("content", "", "page body")
	f.String("image-url", "", "header image URL")

	cmd.AddCommand(set)
	return cmd
}
