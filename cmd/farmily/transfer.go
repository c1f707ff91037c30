package main

import (
	"github.com/spf13/cobra"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/pending_transfers"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/transfer_status"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/accept_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/cancel_transfer"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/initiate_transfer"
)

func (a *app) transferCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "transfer", Short: "Move products between supply-chain actors"}
	cmd.AddCommand(
		a.initiateCmd(),
		a.settleCmd("accept", "Accept an incoming transfer"),
		a.settleCmd("cancel", "Cancel an outgoing transfer"),
		a.pendingCmd(),
		&cobra.Command{
			Use:   "status <tx-hash>",
			Short: "Show the receipt state of a transaction",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.services(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(one(svc.Queries.TransferStatus.Execute(cmd.Context(), &transfer_status.Request{TxHash: args[0]})))
			},
		},
	)
	return cmd
}

func (a *app) initiateCmd() *cobra.Command {
	var req initiate_transfer.Request
	cmd := &cobra.Command{
		Use:   "initiate <product-id>",
		Short: "Offer a product to the next actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := a.actingRole()
			if err != nil {
				return err
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			req.Role, req.ProductID = role, args[0]
			return a.action(svc.Commands.InitiateTransfer.Execute(cmd.Context(), &req))
		},
	}
	cmd.Flags().StringVar(&req.Recipient, "to", "", "recipient address")
	cmd.Flags().Int64Var(&req.Quantity, "quantity", 0, "quantity to move")
	cmd.Flags().StringVar(&req.BlockchainID, "blockchain-id", "", "on-chain id; read from the backend when empty")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// settleCmd builds accept and cancel, which share their arguments.
func (a *app) settleCmd(verb, short string) *cobra.Command {
	var transferID string
	cmd := &cobra.Command{
		Use:   verb + " <blockchain-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := a.actingRole()
			if err != nil {
				return err
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			if verb == "accept" {
				return a.action(svc.Commands.AcceptTransfer.Execute(cmd.Context(), &accept_transfer.Request{
					Role: role, ProductID: args[0], TransferID: transferID,
				}))
			}
			return a.action(svc.Commands.CancelTransfer.Execute(cmd.Context(), &cancel_transfer.Request{
				Role: role, ProductID: args[0], TransferID: transferID,
			}))
		},
	}
	cmd.Flags().StringVar(&transferID, "transfer-id", "", "backend transfer record to update")
	return cmd
}

func (a *app) pendingCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List transfers waiting for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(many(svc.Queries.PendingTransfers.Execute(cmd.Context(), &pending_transfers.Request{Account: account})))
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "address; the connected account when empty")
	return cmd
}
