// Command farmily drives the traceability contract and the backend from a
// terminal, with the same use cases the gateway exposes.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/domain"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
	"github.com/benomayebu/Farmily-Docs/internal/services"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app carries what every command needs. svc is built on first use so
// commands that only touch the local store never dial the node.
type app struct {
	out      io.Writer
	log      zerolog.Logger
	logLevel string
	role     string
	svc      *services.ServiceOptions
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{out: os.Stdout}
	root := a.rootCmd()
	err := root.ExecuteContext(ctx)
	if a.svc != nil {
		a.svc.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "farmily",
		Short:         "Farm-to-table traceability on Ethereum",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.log = logging.New(logging.Config{Level: a.logLevel, Console: true, Out: cmd.ErrOrStderr()})
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.role, "role", string(domain.RoleFarmer), "acting role: farmer, distributor, retailer or consumer")

	root.AddCommand(
		a.loginCmd(),
		a.productCmd(),
		a.transferCmd(),
		a.payCmd(),
		a.userCmd(),
		a.actionsCmd(),
		a.walletCmd(),
		a.historyCmd(),
	)
	return root
}

// services connects lazily.
func (a *app) services(ctx context.Context) (*services.ServiceOptions, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	cfg, err := services.LoadConfig(getenv)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewServiceOptions(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

// getenv reads the environment, defaulting the token store to the user's
// home directory so login survives between invocations.
func getenv(key string) string {
	v := os.Getenv(key)
	if v == "" && key == services.EnvStorePath {
		if home, err := os.UserHomeDir(); err == nil {
			v = filepath.Join(home, ".farmily", "store.db")
		}
	}
	return v
}

func (a *app) actingRole() (domain.Role, error) {
	return domain.ParseRole(a.role)
}

// print writes v as indented JSON.
func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v when present, even next to an error: a failed action still
// carries its ledger row.
func (a *app) emit(v interface{}, err error) error {
	if v != nil {
		if printErr := a.print(v); printErr != nil && err == nil {
			return printErr
		}
	}
	return err
}

// one adapts a single-result query or command for emit.
func one[T any](v *T, err error) (interface{}, error) {
	if v == nil {
		return nil, err
	}
	return v, err
}

// many adapts a list query for emit; an empty result prints [].
func many[T any](v []T, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []T{}
	}
	return v, nil
}
