package cli

import (
	"context"
	"fmt"
	"io"

	"cadak-tickets/internal/app"
	"cadak-tickets/internal/model"

	"github.com/spf13/cobra"
)

// CheckInOptions holds flags for the checkin command.
type CheckInOptions struct {
	*RootOptions
	ScannerID string
}

// NewCheckInCommand creates the checkin command.
func NewCheckInCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckInOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkin <ticket-id | qr-payload>",
		Short: "Check a ticket in at the gate",
		Long: `Redeem a ticket on behalf of a scanner. The scanner must be the
event's seller or hold scanner access from them. A ticket that was already
checked in is reported as already_used and is not changed.

Examples:
  ticketctl checkin 5b0c6e0e-3f2a-4d0e-9a53-3b1d1f0f2a77 --scanner seller_1
  ticketctl checkin '{"t":"5b0c6e0e-3f2a-4d0e-9a53-3b1d1f0f2a77","e":"evt_1","tt":"tt_vip"}' --scanner door_staff`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckIn(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.ScannerID, "scanner", "", "identity of the member scanning (required)")
	_ = cmd.MarkFlagRequired("scanner")

	return cmd
}

func runCheckIn(opts *CheckInOptions, cmd *cobra.Command, arg string) error {
	ticketID := arg
	if payload, err := model.ParseQRPayload(arg); err == nil {
		ticketID = payload.TicketID
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App) error {
		result, err := a.Tickets.CheckIn(ctx, ticketID, opts.ScannerID)
		if err != nil {
			return operationError("check-in failed", err)
		}

		if err := writeOutput(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) {
			fmt.Fprintf(w, "%s: ticket %s (%s, %s)\n", result.Result, result.Ticket.ID, result.Ticket.TypeName, result.Ticket.EventTitle)
		}); err != nil {
			return err
		}

		if result.Result == model.CheckInAlreadyUsed {
			return NewExitError(ExitFailure, "ticket was already used")
		}
		return nil
	})
}
