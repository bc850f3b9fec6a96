package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Berobasket/gdx-pay/internal/application/command"
	"github.com/Berobasket/gdx-pay/internal/application/dto"
	"github.com/Berobasket/gdx-pay/internal/application/query"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
)

func newProductsCmd(f *sessionFactory) *cobra.Command {
	var purchaseType string
	cmd := &cobra.Command{
		Use:   "products <id>...",
		Short: "Show product details",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			resp, err := query.NewGetProductsQuery(s.app.Service).Execute(s.ctx, &dto.ProductsRequest{IDs: args, Type: purchaseType})
			if err != nil {
				return err
			}
			if f.flags.json {
				return f.printJSON(cmd, resp)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTYPE\tTITLE\tPRICE\tPERIOD")
			for _, p := range resp.Products {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ProductID, p.Type, p.Title, p.Price, p.SubscriptionPeriod)
			}
			for _, id := range resp.Missing {
				_, _ = fmt.Fprintf(w, "%s\t-\t(not offered)\t-\t-\n", id)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&purchaseType, "type", "t", "inapp", "item type: inapp or subs")
	return cmd
}

func newPurchasesCmd(f *sessionFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "purchases",
		Short: "List owned purchases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			resp, err := query.NewListPurchasesQuery(s.app.Service).Execute(s.ctx)
			if err != nil {
				return err
			}
			if f.flags.json {
				return f.printJSON(cmd, resp)
			}
			return printPurchases(cmd, resp.Purchases)
		},
	}
}

func printPurchases(cmd *cobra.Command, purchases []dto.TransactionResponse) error {
	if len(purchases) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No purchases.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRODUCT\tTYPE\tORDER\tSTATE\tTEST\tPURCHASED")
	for _, p := range purchases {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", p.ProductID, p.Type, p.OrderID, p.State, p.Test, p.PurchaseTime)
	}
	return w.Flush()
}

func newBuyCmd(f *sessionFactory) *cobra.Command {
	var purchaseType string
	cmd := &cobra.Command{
		Use:   "buy <id>",
		Short: "Purchase a product through the store UI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			resp, err := command.NewPurchaseCommand(s.app.Service, s.logger).Execute(s.ctx, &dto.PurchaseRequest{
				ProductID: args[0],
				Type:      purchaseType,
			})
			if errors.Is(err, domainErrors.ErrPurchaseCanceled) {
				resp, err = &dto.PurchaseResponse{Status: dto.PurchaseStatusCanceled}, nil
			}
			if err != nil {
				return err
			}
			if f.flags.json {
				return f.printJSON(cmd, resp)
			}
			if resp.Transaction == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Purchase of %s %s.\n", args[0], resp.Status)
				return nil
			}
			return printPurchases(cmd, []dto.TransactionResponse{*resp.Transaction})
		},
	}
	cmd.Flags().StringVarP(&purchaseType, "type", "t", "inapp", "item type: inapp or subs")
	return cmd
}

func newCancelTestPurchasesCmd(f *sessionFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-test-purchases",
		Short: "Consume every owned test purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			resp, err := command.NewCancelTestPurchasesCommand(s.app.Service, s.logger).Execute(s.ctx)
			if err != nil {
				return err
			}
			if f.flags.json {
				return f.printJSON(cmd, resp)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Canceled %d test purchase(s), %d purchase(s) remain.\n", resp.Canceled, resp.Remaining)
			return nil
		},
	}
}
