package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cadak-tickets/internal/app"
	"cadak-tickets/internal/model"

	"github.com/spf13/cobra"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <reference>",
		Short: "Verify a payment with the gateway and issue its tickets",
		Long: `Re-verify a payment reference with Paystack and, when it is paid,
settle the order and issue its tickets. Running it for an order that is
already paid reports the existing tickets and issues nothing new.

Exit codes:
  0 - Order is paid and its tickets exist
  1 - The payment was refused (not paid, amount mismatch, unknown order)
  2 - Command error (configuration, database or gateway unreachable)

Examples:
  ticketctl reconcile cadak_1718000000000_a1b2c3
  ticketctl reconcile cadak_1718000000000_a1b2c3 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Reconcile.ConfirmPayment(ctx, args[0])
				if err != nil {
					return operationError("reconcile failed", err)
				}
				return writeOutput(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) {
					state := "settled"
					if result.AlreadyPaid {
						state = "already paid"
					}
					fmt.Fprintf(w, "order %s (%s) %s\n", result.OrderID, result.Reference, state)
					for _, id := range result.TicketIDs {
						fmt.Fprintf(w, "  ticket %s\n", id)
					}
				})
			})
		},
	}
}

// NewOrderCommand creates the order command.
func NewOrderCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "order <reference>",
		Short: "Show an order and its tickets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(ctx context.Context, a *app.App) error {
				details, err := a.Reconcile.GetOrder(ctx, args[0])
				if err != nil {
					return operationError("order lookup failed", err)
				}
				return writeOutput(cmd.OutOrStdout(), opts.Format, details, func(w io.Writer) {
					writeOrderText(w, details)
				})
			})
		},
	}
}

func writeOrderText(w io.Writer, details *model.OrderDetails) {
	o := details.Order
	fmt.Fprintf(w, "order %s\n", o.ID)
	fmt.Fprintf(w, "  reference: %s\n", o.Reference)
	fmt.Fprintf(w, "  status:    %s\n", o.Status)
	fmt.Fprintf(w, "  buyer:     %s\n", o.BuyerEmail)
	fmt.Fprintf(w, "  total:     %d %s\n", o.TotalMinor, o.Currency)
	if o.PaidAt != nil {
		fmt.Fprintf(w, "  paid at:   %s\n", o.PaidAt.Format("2006-01-02 15:04:05Z07:00"))
	}

	fmt.Fprintf(w, "tickets (%d)\n", len(details.Tickets))
	for _, t := range details.Tickets {
		fmt.Fprintf(w, "  %s  %-10s  %s  %s\n", t.ID, t.Status, t.TypeName, strings.TrimSpace(t.EventTitle))
	}
}

// withApp opens the configured services for the duration of fn.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := opts.openApp(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
