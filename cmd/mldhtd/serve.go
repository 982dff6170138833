package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chainflux/mldht/admin"
	"github.com/chainflux/mldht/bloom"
	"github.com/chainflux/mldht/config"
	"github.com/chainflux/mldht/dht"
	"github.com/chainflux/mldht/krpc"
	"github.com/chainflux/mldht/store"
	"github.com/chainflux/mldht/transport"
)

func serveCmd() *cobra.Command {
	var envPath, yamlPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the DHT node until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envPath, yamlPath)
		},
	}

	cmd.Flags().StringVar(&envPath, "env", ".env", "path to a .env file (optional)")
	cmd.Flags().StringVar(&yamlPath, "config", "", "path to a YAML config override (optional)")

	return cmd
}

func runServe(envPath, yamlPath string) error {
	cfg, err := config.Load(envPath, yamlPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	selfID := dht.IDFromName([]byte(cfg.NodeIDName))
	table := dht.NewRoutingTable(selfID, cfg.K)

	peerStore, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("building peer store: %w", err)
	}

	udp, err := transport.Listen(fmt.Sprintf(":%d", cfg.NodePort))
	if err != nil {
		return fmt.Errorf("binding udp socket: %w", err)
	}
	defer udp.Close()

	filter := bloom.New()
	engine := krpc.NewEngine(selfID, table, peerStore, udp, cfg.K)
	engine.SetPeerFilter(filter)
	maintainerCfg := krpc.DefaultMaintainerConfig()
	maintainerCfg.HeartbeatInterval = cfg.Heartbeat
	maintainer := krpc.NewMaintainer(engine, table, maintainerCfg)
	maintainer.Start()
	defer maintainer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go udp.Serve(ctx, engine.HandleDatagram)

	hosts := make([]string, len(cfg.Bootstrap))
	ports := make([]int, len(cfg.Bootstrap))
	for i, n := range cfg.Bootstrap {
		hosts[i] = n.Host
		ports[i] = n.Port
	}
	engine.Bootstrap(hosts, ports)

	adminSrv := admin.New(table, peerStore, filter)
	httpServer := &http.Server{Addr: cfg.AdminAddr, Handler: adminSrv}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithFields(logrus.Fields{
				"function": "runServe",
				"error":    err,
			}).Warn("admin server stopped")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "runServe",
		"node_id":  selfID.String(),
		"port":     cfg.NodePort,
	}).Info("mldhtd listening")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	_ = httpServer.Shutdown(context.Background())
	return nil
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.PeerStorage {
	case "mysql":
		return store.NewMySQLStore(cfg.MySQLDSN, cfg.MaxPeersPerTorrent)
	case "file", "":
		return store.NewFileStore(cfg.PeerStorageDir, cfg.MaxPeersPerTorrent)
	default:
		return nil, fmt.Errorf("unknown peer storage backend %q", cfg.PeerStorage)
	}
}
