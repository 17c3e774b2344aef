package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vrfchain/node/config"
	"github.com/vrfchain/node/log"
	"github.com/vrfchain/node/node"
	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/types"
)

var logger = log.New("pkg", "main")

func main() {
	app := cli.App{
		Name:   "vrfchain-node",
		Usage:  "permissioned VRF-consensus node",
		Flags:  config.Flags,
		Action: runAction,
	}

	err := app.Run(os.Args)
	if interrupted.Load() {
		os.Exit(exitInterrupted)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatalStartup)
	}
	os.Exit(exitClean)
}

const (
	exitClean            = 0
	exitFatalStartup     = 1
	exitStorageCorrupted = 2
	exitInterrupted      = 130
)

// interrupted records whether shutdown was triggered by SIGINT/SIGTERM,
// since cli.App's return-value exit path can't otherwise distinguish it
// from an ordinary clean return.
var interrupted atomic.Bool

func runAction(ctx *cli.Context) error {
	cfg, err := config.FromCLI(ctx)
	if err != nil {
		return cli.NewExitError(err.Error(), exitFatalStartup)
	}

	epoch, err := loadEpoch(cfg)
	if err != nil {
		return cli.NewExitError(err.Error(), exitFatalStartup)
	}

	n, err := node.New(cfg, epoch)
	if err != nil {
		if errors.Is(err, store.ErrCorrupted) {
			return cli.NewExitError(err.Error(), exitStorageCorrupted)
		}
		return cli.NewExitError(err.Error(), exitFatalStartup)
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error("close storage", "err", err)
		}
	}()

	runCtx, stop := signalContext()
	defer stop()

	logger.Info("starting node", "listen_port", cfg.ListenPort, "data_dir", cfg.DataDir)
	if err := n.Run(runCtx); err != nil {
		return cli.NewExitError(err.Error(), exitFatalStartup)
	}

	if runCtx.Err() == context.Canceled {
		logger.Info("shut down cleanly")
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. It marks
// the package-level interrupted flag before cancelling, so main can set
// the process exit code once runAction returns.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		interrupted.Store(true)
		cancel()
	}()
	return ctx, cancel
}

// loadEpoch builds the initial super node set this process joins with.
// In a real deployment this is read from genesis configuration; here a
// single-member set keyed on the local identity lets a freshly
// initialized node reach quorum on its own while bootnodes are being
// discovered.
func loadEpoch(cfg config.Config) (*supernode.Set, error) {
	self, err := node.LoadOrGenerateIdentity(cfg.NodeKeyPath)
	if err != nil {
		return nil, err
	}
	return supernode.NewSet(map[types.PublicKey]supernode.Info{
		self.PublicKey(): {
			StakeWeight:       1,
			PerformanceFactor: supernode.Performance100,
			DecayFactor:       1.0,
		},
	})
}
