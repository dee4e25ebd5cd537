package cmd

import (
	"context"
	"fmt"

	"github.com/bugisthegod/techmart-storefront/internal/orders"
	"github.com/bugisthegod/techmart-storefront/internal/storefront"
	"github.com/bugisthegod/techmart-storefront/pkg/enums"
	"github.com/spf13/cobra"
)

var (
	orderToken   string
	addressID    string
	freightType  string
	orderComment string
	listPage     int
	listSize     int
	listStatus   string
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Place and track orders",
}

var orderTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate an idempotency token for the next order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			tok, err := sf.Orders.GenerateOrderToken(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]string{"orderToken": tok}, nil
		})
	},
}

var orderCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Order the selected cart rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		freight, err := enums.ParseFreightType(freightType)
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			tok := orderToken
			if tok == "" {
				tok, _ = sf.Orders.StoredOrderToken(ctx)
			}
			req := orders.OrderRequest{AddressID: addressID, FreightType: freight, Comment: orderComment}
			return sf.PlaceOrder(ctx, req, tok)
		})
	},
}

var orderGetCmd = &cobra.Command{
	Use:   "get <order-id>",
	Short: "Show one order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return sf.Orders.GetOrder(ctx, orderID)
		})
	},
}

var orderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status *int
		if listStatus != "" {
			parsed, err := enums.ParseOrderStatus(listStatus)
			if err != nil {
				return err
			}
			code := int(parsed)
			status = &code
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return sf.Orders.ListOrders(ctx, listPage, listSize, status)
		})
	},
}

var orderPayCmd = &cobra.Command{
	Use:   "pay <order-id>",
	Short: "Pay a pending order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionOrder(cmd, args[0], (*orders.Service).PayOrder)
	},
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel a pending order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionOrder(cmd, args[0], (*orders.Service).CancelOrder)
	},
}

func transitionOrder(cmd *cobra.Command, rawID string, fn func(*orders.Service, context.Context, int64) (*orders.Order, error)) error {
	orderID, err := parseID(rawID)
	if err != nil {
		return err
	}
	return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
		order, err := fn(sf.Orders, ctx, orderID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"orderNo": order.OrderNo, "status": order.Status.String()}, nil
	})
}

func init() {
	orderCreateCmd.Flags().StringVar(&orderToken, "token", "", "idempotency token (defaults to the stored one)")
	orderCreateCmd.Flags().StringVar(&addressID, "address", "", "shipping address id (defaults to the default address)")
	orderCreateCmd.Flags().StringVar(&freightType, "freight", string(enums.FreightTypeStandard), fmt.Sprintf("freight type (%s or %s)", enums.FreightTypeStandard, enums.FreightTypeExpress))
	orderCreateCmd.Flags().StringVar(&orderComment, "comment", "", "note for the order")

	orderListCmd.Flags().IntVar(&listPage, "page", 0, "zero based page")
	orderListCmd.Flags().IntVar(&listSize, "size", 10, "page size")
	orderListCmd.Flags().StringVar(&listStatus, "status", "", "only orders in this status")

	orderCmd.AddCommand(orderTokenCmd, orderCreateCmd, orderGetCmd, orderListCmd, orderPayCmd, orderCancelCmd)
	rootCmd.AddCommand(orderCmd)
}
