package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bugisthegod/techmart-storefront/internal/cart"
	"github.com/bugisthegod/techmart-storefront/internal/storefront"
	"github.com/spf13/cobra"
)

var (
	addQuantity   int
	addUnselected bool
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Inspect and edit the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return cartOutcome(sf.Cart.LoadCart(ctx))
		})
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add <product-id>",
	Short: "Add a product to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		productID, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			selected := !addUnselected
			return cartOutcome(sf.Cart.AddItem(ctx, productID, addQuantity, &selected))
		})
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <cart-item-id>",
	Short: "Remove a row from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cartItemID, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return cartOutcome(sf.Cart.RemoveItem(ctx, cartItemID))
		})
	},
}

var cartQuantityCmd = &cobra.Command{
	Use:   "quantity <cart-item-id> <quantity>",
	Short: "Change the quantity of a row",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cartItemID, err := parseID(args[0])
		if err != nil {
			return err
		}
		quantity, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return cartOutcome(sf.Cart.UpdateQuantity(ctx, cartItemID, quantity))
		})
	},
}

var cartSelectCmd = &cobra.Command{
	Use:   "select <cart-item-id> <true|false>",
	Short: "Include or exclude a row from checkout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cartItemID, err := parseID(args[0])
		if err != nil {
			return err
		}
		selected, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid selection %q", args[1])
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return cartOutcome(sf.Cart.UpdateItemSelection(ctx, cartItemID, selected))
		})
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return cartOutcome(sf.Cart.ClearCart(ctx))
		})
	},
}

func cartOutcome(res cart.Result) (any, error) {
	if !res.Success {
		return outcome(false, res.Message, nil)
	}
	return res.Data, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func init() {
	cartAddCmd.Flags().IntVarP(&addQuantity, "quantity", "q", 1, "quantity to add")
	cartAddCmd.Flags().BoolVar(&addUnselected, "unselected", false, "add the row without selecting it for checkout")

	cartCmd.AddCommand(cartAddCmd, cartRemoveCmd, cartQuantityCmd, cartSelectCmd, cartClearCmd)
	rootCmd.AddCommand(cartCmd)
}
