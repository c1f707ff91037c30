package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/contracts"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/get_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/product_journey"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/queries/verify_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/register_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/sync_product"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_info"
	"github.com/benomayebu/Farmily-Docs/internal/app/trace/usecases/update_status"
)

// action prints the ledger row a command left behind.
func (a *app) action(res *coordinator.Result, err error) error {
	if res == nil || res.Action == nil {
		return err
	}
	return a.emit(contracts.NewActionDTO(res.Action), err)
}

func (a *app) productCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Register, update and inspect products"}
	cmd.AddCommand(
		a.registerProductCmd(),
		a.statusCmd(),
		a.infoCmd(),
		a.syncCmd(),
		&cobra.Command{
			Use:   "get <blockchain-id>",
			Short: "Read the on-chain product state",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.services(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(one(svc.Queries.GetProduct.Execute(cmd.Context(), &get_product.Request{ProductID: args[0]})))
			},
		},
		&cobra.Command{
			Use:   "verify <blockchain-id | qr-json>",
			Short: "Check a product is authentic",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.services(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(one(svc.Queries.VerifyProduct.Execute(cmd.Context(), &verify_product.Request{Input: args[0]})))
			},
		},
		&cobra.Command{
			Use:   "journey <blockchain-id>",
			Short: "List every contract event for a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.services(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(many(svc.Queries.ProductJourney.Execute(cmd.Context(), &product_journey.Request{ProductID: args[0]})))
			},
		},
	)
	return cmd
}

func (a *app) registerProductCmd() *cobra.Command {
	var req register_product.Request
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a product in the backend and on chain (farmer)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := a.actingRole()
			if err == nil {
				err = role.Require(domain.RoleFarmer)
			}
			if err != nil {
				return err
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(one(svc.Commands.RegisterProduct.Execute(cmd.Context(), &req)))
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.BatchNumber, "batch", "", "batch number")
	f.StringVar(&req.ProductType, "type", "", "product type")
	f.StringVar(&req.Origin, "origin", "", "origin")
	f.StringVar(&req.ProductionDate, "date", "", "production date, YYYY-MM-DD")
	f.Int64Var(&req.Quantity, "quantity", 0, "quantity")
	f.StringVar(&req.Price, "price", "0", "price in ether")
	f.StringSliceVar(&req.Certifications, "cert", nil, "certification, repeatable")
	_ = cmd.MarkFlagRequired("batch")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("quantity")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	var blockchainID string
	cmd := &cobra.Command{
		Use:   "status <product-id> <status>",
		Short: "Set the product status on chain and in the backend",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := a.actingRole()
			if err != nil {
				return err
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			return a.action(svc.Commands.UpdateStatus.Execute(cmd.Context(), &update_status.Request{
				Role:         role,
				ProductID:    args[0],
				BlockchainID: blockchainID,
				Status:       args[1],
			}))
		},
	}
	cmd.Flags().StringVar(&blockchainID, "blockchain-id", "", "on-chain id; read from the backend when empty")
	return cmd
}

func (a *app) infoCmd() *cobra.Command {
	var blockchainID string
	var fields []string
	cmd := &cobra.Command{
		Use:   "info <product-id>",
		Short: "Record product details, e.g. --set storage=cold --set shelf=A3",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := a.actingRole()
			if err != nil {
				return err
			}
			info := make(map[string]interface{}, len(fields))
			for _, kv := range fields {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("--set wants key=value, got %q", kv)
				}
				info[k] = v
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			return a.action(svc.Commands.UpdateInfo.Execute(cmd.Context(), &update_info.Request{
				Role:         role,
				ProductID:    args[0],
				BlockchainID: blockchainID,
				Info:         info,
			}))
		},
	}
	cmd.Flags().StringVar(&blockchainID, "blockchain-id", "", "on-chain id; read from the backend when empty")
	cmd.Flags().StringArrayVar(&fields, "set", nil, "key=value, repeatable")
	return cmd
}

func (a *app) syncCmd() *cobra.Command {
	var req sync_product.Request
	cmd := &cobra.Command{
		Use:   "sync <product-id>",
		Short: "Push the on-chain state to the backend record",
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
			return a.emit(one(svc.Commands.SyncProduct.Execute(cmd.Context(), &req)))
		},
	}
	cmd.Flags().StringVar(&req.BlockchainID, "blockchain-id", "", "on-chain id; read from the backend when empty")
	cmd.Flags().StringVar(&req.EthereumAddress, "address", "", "owner address sent with the sync")
	return cmd
}
