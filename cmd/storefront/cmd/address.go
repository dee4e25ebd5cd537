package cmd

import (
	"context"

	"github.com/bugisthegod/techmart-storefront/internal/address"
	"github.com/bugisthegod/techmart-storefront/internal/storefront"
	"github.com/spf13/cobra"
)

var (
	addressForm    address.Request
	addressDefault bool
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Manage delivery addresses",
}

var addressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return sf.Addresses.List(ctx)
		})
	},
}

var addressShowDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Show the default address",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return sf.Addresses.Default(ctx)
		})
	},
}

var addressAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new address",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := formFromFlags(cmd)
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return sf.Addresses.Create(ctx, req)
		})
	},
}

var addressUpdateCmd = &cobra.Command{
	Use:   "update <address-id>",
	Short: "Replace a saved address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addressID, err := parseID(args[0])
		if err != nil {
			return err
		}
		req := formFromFlags(cmd)
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return sf.Addresses.Update(ctx, addressID, req)
		})
	},
}

var addressDeleteCmd = &cobra.Command{
	Use:   "delete <address-id>",
	Short: "Delete a saved address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addressID, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			if err := sf.Addresses.Delete(ctx, addressID); err != nil {
				return nil, err
			}
			return map[string]int64{"deleted": addressID}, nil
		})
	},
}

var addressSetDefaultCmd = &cobra.Command{
	Use:   "set-default <address-id>",
	Short: "Make an address the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addressID, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, sf *storefront.Storefront) (any, error) {
			return sf.Addresses.SetDefault(ctx, addressID)
		})
	},
}

// formFromFlags copies the shared form flags. --default is only sent when given.
func formFromFlags(cmd *cobra.Command) address.Request {
	req := addressForm
	if cmd.Flags().Changed("default") {
		flag := 0
		if addressDefault {
			flag = 1
		}
		req.IsDefault = &flag
	}
	return req
}

func init() {
	for _, c := range []*cobra.Command{addressAddCmd, addressUpdateCmd} {
		f := c.Flags()
		f.StringVar(&addressForm.ReceiverName, "name", "", "receiver name")
		f.StringVar(&addressForm.ReceiverPhone, "phone", "", "receiver phone")
		f.StringVar(&addressForm.Province, "province", "", "province or state")
		f.StringVar(&addressForm.City, "city", "", "city")
		f.StringVar(&addressForm.District, "district", "", "district")
		f.StringVar(&addressForm.DetailAddress, "detail", "", "street and number")
		f.StringVar(&addressForm.PostalCode, "postal-code", "", "postal code")
		f.BoolVar(&addressDefault, "default", false, "make this the default address")
	}

	addressCmd.AddCommand(addressListCmd, addressShowDefaultCmd, addressAddCmd, addressUpdateCmd, addressDeleteCmd, addressSetDefaultCmd)
	rootCmd.AddCommand(addressCmd)
}
