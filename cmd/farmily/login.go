package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/localstore"
	"github.com/benomayebu/Farmily-Docs/internal/services"
)

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store the backend token for the acting role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := a.actingRole()
			if err != nil {
				return err
			}
			token := strings.TrimSpace(strings.TrimPrefix(args[0], "Bearer "))
			if token == "" {
				return errors.New("token is empty")
			}
			store, err := localstore.Open(getenv(services.EnvStorePath))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SetToken(string(role), token); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "token saved for %s\n", role)
			return nil
		},
	}
}
