package main

import (
	"github.com/spf13/cobra"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/balance"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/consumer_history"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/list_actions"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/reconcile"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_user"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/trigger_payment"
)

func (a *app) actionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "actions", Short: "Inspect and repair the action ledger"}
	cmd.AddCommand(a.listActionsCmd(), a.reconcileCmd())
	return cmd
}

func (a *app) listActionsCmd() *cobra.Command {
	var (
		states []string
		kind   string
		filter contracts.ActionFilter
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded actions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range states {
				state, err := domain.ParseActionState(s)
				if err != nil {
					return err
				}
				filter.States = append(filter.States, state)
			}
			filter.Kind = domain.ActionKind(kind)
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(many(svc.Queries.ListActions.Execute(cmd.Context(), &list_actions.Request{Filter: filter})))
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&states, "state", nil, "state filter, repeatable")
	f.StringVar(&kind, "kind", "", "action kind, e.g. update_status")
	f.StringVar(&filter.ProductRef, "product", "", "product reference")
	f.StringVar(&filter.TxHash, "tx", "", "transaction hash")
	f.IntVar(&filter.Limit, "limit", contracts.DefaultListLimit, "maximum rows")
	return cmd
}

func (a *app) reconcileCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reconcile [action-id]",
		Short: "Retry the backend write of committed or drifted actions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &reconcile.Request{Limit: limit}
			if len(args) == 1 {
				req.ActionID = args[0]
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Commands.Reconcile.Execute(cmd.Context(), req)
			if res != nil && res.Action != nil {
				return a.emit(contracts.NewActionDTO(res.Action), err)
			}
			if res != nil && res.Report != nil {
				return a.emit(res.Report, err)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum actions per pass; 0 for the default")
	return cmd
}

func (a *app) payCmd() *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "pay <blockchain-id>",
		Short: "Pay the product owner in ether",
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
			res, err := svc.Commands.TriggerPayment.Execute(cmd.Context(), &trigger_payment.Request{
				Role: role, ProductID: args[0], Amount: amount,
			})
			if res == nil {
				return err
			}
			return a.action(res.Result, err)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount in ether")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage on-chain users"}
	cmd.AddCommand(&cobra.Command{
		Use:   "register <identifier>",
		Short: "Register the connected account under the acting role",
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
			return a.action(svc.Commands.RegisterUser.Execute(cmd.Context(), &register_user.Request{
				Role: role, Identifier: args[0],
			}))
		},
	})
	return cmd
}

func (a *app) walletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show the connected account and its balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(one(svc.Queries.Balance.Execute(cmd.Context(), &balance.Request{})))
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the products an account has handled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(many(svc.Queries.ConsumerHistory.Execute(cmd.Context(), &consumer_history.Request{Account: account})))
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "address; the connected account when empty")
	return cmd
}
