package cli

import (
	"context"
	"fmt"
	"io"

	"cadak-tickets/internal/app"
	"cadak-tickets/internal/model"

	"github.com/spf13/cobra"
)

// PayoutOptions holds flags for the payout commands.
type PayoutOptions struct {
	*RootOptions
	Status string
}

// NewPayoutCommand creates the payout command group.
func NewPayoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PayoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "payout",
		Short: "Review seller payout requests",
	}

	list := &cobra.Command{
		Use:   "list <seller-id>",
		Short: "Show a seller's balance and payout requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayoutList(opts, cmd, args[0])
		},
	}

	resolve := &cobra.Command{
		Use:   "resolve <payout-id>",
		Short: "Mark a pending payout request as paid or rejected",
		Long: `Close a pending payout request once the transfer was made, or reject it.
A rejected amount returns to the seller's available balance.

Examples:
  ticketctl payout resolve 0b7f3c1e-9c6d-4a55-8f5e-2f1f5b1e7c10 --status paid
  ticketctl payout resolve 0b7f3c1e-9c6d-4a55-8f5e-2f1f5b1e7c10 --status rejected`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayoutResolve(opts, cmd, args[0])
		},
	}
	resolve.Flags().StringVar(&opts.Status, "status", "", "new status: paid or rejected (required)")
	_ = resolve.MarkFlagRequired("status")

	cmd.AddCommand(list, resolve)
	return cmd
}

type payoutListing struct {
	Balance  *model.PayoutBalance  `json:"balance"`
	Requests []model.PayoutRequest `json:"requests"`
}

func runPayoutList(opts *PayoutOptions, cmd *cobra.Command, sellerID string) error {
	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App) error {
		balance, err := a.Payouts.Balance(ctx, sellerID)
		if err != nil {
			return operationError("failed to compute balance", err)
		}
		requests, err := a.Payouts.ListPayouts(ctx, sellerID, 100, 0)
		if err != nil {
			return operationError("failed to list payouts", err)
		}

		listing := payoutListing{Balance: balance, Requests: requests}
		return writeOutput(cmd.OutOrStdout(), opts.Format, listing, func(w io.Writer) {
			fmt.Fprintf(w, "available: %d %s (sales %d, fee %d, requested %d)\n",
				balance.AvailableMinor, balance.Currency, balance.SalesMinor, balance.FeeMinor, balance.RequestedMinor)
			for _, p := range requests {
				fmt.Fprintf(w, "  %s  %-8s %d %s\n", p.ID, p.Status, p.AmountMinor, p.Currency)
			}
		})
	})
}

func runPayoutResolve(opts *PayoutOptions, cmd *cobra.Command, payoutID string) error {
	status := model.PayoutStatus(opts.Status)
	if status != model.PayoutPaid && status != model.PayoutRejected {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q: must be paid or rejected", opts.Status))
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App) error {
		payout, err := a.Payouts.ResolvePayout(ctx, payoutID, status)
		if err != nil {
			return operationError("failed to resolve payout", err)
		}

		return writeOutput(cmd.OutOrStdout(), opts.Format, payout, func(w io.Writer) {
			fmt.Fprintf(w, "payout %s for %s: %s (%d %s)\n", payout.ID, payout.SellerID, payout.Status, payout.AmountMinor, payout.Currency)
		})
	})
}
