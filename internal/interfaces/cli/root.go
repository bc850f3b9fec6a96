package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/application/command"
	"github.com/Berobasket/gdx-pay/internal/bootstrap"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/config"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/sandbox"
)

// Options configures the command tree
type Options struct {
	Version    string
	LoadConfig func() (*config.Config, error)
	Logger     *zap.Logger
}

type globalFlags struct {
	grants  []string
	mode    string
	timeout time.Duration
	json    bool
}

// NewRootCmd creates the root cobra command for billingctl. Every command
// runs against a fresh sandbox billing platform.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Drive a Play billing client against the sandbox store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringArrayVar(&flags.grants, "grant", nil, "seed an owned purchase as productID[:orderID] (repeatable)")
	root.PersistentFlags().StringVar(&flags.mode, "mode", string(sandbox.PurchaseApprove), "how the store UI answers: approve, cancel or fail")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "how long to wait for the store")
	root.PersistentFlags().BoolVar(&flags.json, "json", false, "print JSON instead of tables")

	s := &sessionFactory{opts: opts, flags: flags}
	root.AddCommand(newProductsCmd(s))
	root.AddCommand(newPurchasesCmd(s))
	root.AddCommand(newBuyCmd(s))
	root.AddCommand(newCancelTestPurchasesCmd(s))
	root.AddCommand(newVersionCmd(opts.Version))

	return root
}

type sessionFactory struct {
	opts  Options
	flags *globalFlags
}

// session is a connected billing client for the duration of one command
type session struct {
	app    *bootstrap.App
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func (f *sessionFactory) open(cmd *cobra.Command) (*session, error) {
	cfg, err := f.opts.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.flags.timeout)
	app, err := bootstrap.New(ctx, cfg, f.opts.Logger)
	if err != nil {
		cancel()
		return nil, err
	}
	s := &session{app: app, ctx: ctx, cancel: cancel, logger: f.opts.Logger}

	if err := app.Platform.SetPurchaseMode(sandbox.PurchaseMode(f.flags.mode)); err != nil {
		s.close()
		return nil, err
	}
	for _, grant := range f.flags.grants {
		productID, orderID, _ := strings.Cut(grant, ":")
		if _, err := app.Platform.Grant(productID, orderID); err != nil {
			s.close()
			return nil, fmt.Errorf("grant '%s': %w", grant, err)
		}
	}

	if err := command.NewConnectCommand(app.Service, f.opts.Logger).Execute(ctx); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	s.app.Close()
	s.cancel()
}

func (f *sessionFactory) printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "billingctl", version)
		},
	}
}
