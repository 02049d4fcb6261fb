package main

import (
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ziesha/bazuka/internal/blockchain"
	"github.com/ziesha/bazuka/internal/node"
	"github.com/ziesha/bazuka/internal/store"
)

var log = logrus.WithField("module", "main")

type nodeFlags struct {
	listen        string
	external      string
	bootstrap     []string
	network       string
	minerToken    string
	dbPath        string
	socialTwitter string
	socialDiscord string
	clientOnly    bool
	metricsAddr   string
	logLevel      string
}

func main() {
	root := &cobra.Command{
		Use:   "bazuka",
		Short: "Ziesha network node",
	}
	root.AddCommand(nodeCommand())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func nodeCommand() *cobra.Command {
	flags := &nodeFlags{}
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run the p2p node daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNode(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.listen, "listen", "0.0.0.0:8765", "address to listen on for inbound RPC")
	cmd.Flags().StringVar(&flags.external, "external", "", "address peers use to reach us (omit on client-only nodes)")
	cmd.Flags().StringSliceVar(&flags.bootstrap, "bootstrap", nil, "bootstrap peer addresses (ip:port)")
	cmd.Flags().StringVar(&flags.network, "network", "ziesha", "network tag")
	cmd.Flags().StringVar(&flags.minerToken, "miner-token", "", "opaque miner token (stored in the node options; not used by the node)")
	cmd.Flags().StringVar(&flags.dbPath, "db", "", "database directory (required)")
	cmd.Flags().StringVar(&flags.socialTwitter, "social-twitter", "", "twitter profile (stored in the node options; not sent to peers)")
	cmd.Flags().StringVar(&flags.socialDiscord, "social-discord", "", "discord profile (stored in the node options; not sent to peers)")
	cmd.Flags().BoolVar(&flags.clientOnly, "client-only", false, "do not advertise this node for inbound connections")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.MarkFlagRequired("db")
	return cmd
}

func buildOptions(flags *nodeFlags) (node.Options, error) {
	opts := node.DefaultOptions()
	opts.Network = flags.network
	opts.ListenAddr = flags.listen
	opts.MinerToken = flags.minerToken
	opts.ClientOnly = flags.clientOnly

	if flags.external != "" {
		addr, err := netip.ParseAddrPort(flags.external)
		if err != nil {
			return opts, fmt.Errorf("parsing --external: %w", err)
		}
		opts.ExternalAddr = &addr
	}
	for _, b := range flags.bootstrap {
		addr, err := netip.ParseAddrPort(b)
		if err != nil {
			return opts, fmt.Errorf("parsing --bootstrap %q: %w", b, err)
		}
		opts.Bootstrap = append(opts.Bootstrap, addr)
	}

	opts.SocialProfiles = make(map[string]string)
	if flags.socialTwitter != "" {
		opts.SocialProfiles["twitter"] = flags.socialTwitter
	}
	if flags.socialDiscord != "" {
		opts.SocialProfiles["discord"] = flags.socialDiscord
	}
	return opts, nil
}

func runNode(cmd *cobra.Command, flags *nodeFlags) error {
	level, err := logrus.ParseLevel(flags.logLevel)
	if err != nil {
		return fmt.Errorf("parsing --log-level: %w", err)
	}
	logrus.SetLevel(level)

	opts, err := buildOptions(flags)
	if err != nil {
		return err
	}

	db, err := store.OpenLevelDB(flags.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	chain, err := blockchain.NewKvChain(db, opts.Network, nil)
	if err != nil {
		return err
	}

	if flags.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(flags.metricsAddr, mux); err != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"network": opts.Network,
		"listen":  opts.ListenAddr,
	}).Info("starting node")
	return node.New(opts, chain, clock.New()).Run(ctx)
}
