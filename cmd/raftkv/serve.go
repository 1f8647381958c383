package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/raftkv/pkg/kvservice"
	"github.com/cuemby/raftkv/pkg/kvstore"
	"github.com/cuemby/raftkv/pkg/log"
	"github.com/cuemby/raftkv/pkg/metrics"
	"github.com/cuemby/raftkv/pkg/raftadmin"
	"github.com/cuemby/raftkv/pkg/raftengine"
	"github.com/cuemby/raftkv/pkg/raftkvclient"
	"github.com/cuemby/raftkv/pkg/rpc"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a raftkv node",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Uint64("node-id", 0, "This node's unique cluster-wide id (required)")
	serveCmd.Flags().String("raft-addr", "127.0.0.1:7000", "Address peers dial for Raft consensus RPCs")
	serveCmd.Flags().String("kv-addr", "127.0.0.1:8000", "Address clients dial for KV and admin RPCs")
	serveCmd.Flags().String("data-dir", "data", "Directory for the KV store and Raft log/snapshots")
	serveCmd.Flags().StringSlice("peers", nil, "Seed KV addresses of an existing cluster to join; omit to bootstrap a new cluster")
	serveCmd.Flags().String("metrics-addr", "", "Address to serve /metrics, /health, /ready, /live on (disabled if empty)")
	serveCmd.Flags().String("config", "", "Optional YAML file overriding these flags")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.WithComponent("serve").With().Uint64("node_id", flags.NodeID).Logger()
	logger.Info().Str("kv_addr", flags.KVAddress).Str("raft_addr", flags.RaftAddress).Msg("starting raftkv node")

	store, err := kvstore.Open(flags.DataDir)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer store.Close()

	engine, err := raftengine.New(raftengine.Config{
		NodeID:      flags.NodeID,
		RaftAddress: flags.RaftAddress,
		KVAddress:   flags.KVAddress,
		DataDir:     flags.DataDir,
		Bootstrap:   len(flags.Peers) == 0,
	}, store)
	if err != nil {
		return fmt.Errorf("start consensus engine: %w", err)
	}

	lis, err := net.Listen("tcp", flags.KVAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", flags.KVAddress, err)
	}

	grpcServer := grpc.NewServer()
	rpc.RegisterKvServiceServer(grpcServer, kvservice.New(engine, store))
	rpc.RegisterRaftServiceServer(grpcServer, raftadmin.New(engine))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			serveErrCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	logger.Info().Msg("kv and raft admin services listening")

	if len(flags.Peers) > 0 {
		if err := joinExistingCluster(flags, logger); err != nil {
			grpcServer.Stop()
			engine.Shutdown()
			return err
		}
	}

	metrics.SetVersion(Version)
	metrics.RegisterComponent("raft", true, "started")
	metrics.RegisterComponent("kvstore", true, "opened")
	metrics.RegisterComponent("kvservice", true, "listening")

	stopStats := startStatsPoller(engine)
	defer stopStats()

	if flags.MetricsAddr != "" {
		go serveMetricsHTTP(flags.MetricsAddr, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-serveErrCh:
		logger.Error().Err(err).Msg("grpc server failed")
	}

	grpcServer.GracefulStop()
	if err := engine.Shutdown(); err != nil {
		return fmt.Errorf("shutdown consensus engine: %w", err)
	}
	return nil
}

// joinExistingCluster asks one of flags.Peers' cluster leader to add this
// node as a voter. It uses the client's own redirect-following, so any one
// reachable peer is enough regardless of which node currently leads.
func joinExistingCluster(flags serveFlags, logger zerolog.Logger) error {
	c, err := raftkvclient.New(flags.Peers...)
	if err != nil {
		return fmt.Errorf("contact cluster at %v: %w", flags.Peers, err)
	}
	defer c.Close()

	addr := rpc.NodeAddressWire{KVAddress: flags.KVAddress, RaftAddress: flags.RaftAddress}
	if err := c.Join(flags.NodeID, addr); err != nil {
		return fmt.Errorf("join cluster: %w", err)
	}
	logger.Info().Msg("joined existing cluster")
	return nil
}

func serveMetricsHTTP(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

// startStatsPoller periodically copies engine-internal counters into the
// process-wide Prometheus gauges. It lives here rather than in pkg/metrics
// because pkg/raftengine already imports pkg/metrics for its own proposal
// timers, and a back-import would cycle.
func startStatsPoller(engine *raftengine.Engine) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				appliedIndex, peers := engine.Stats()
				metrics.RaftAppliedIndex.Set(float64(appliedIndex))
				metrics.RaftPeersTotal.Set(float64(peers))
				if engine.IsLeader() {
					metrics.RaftIsLeader.Set(1)
				} else {
					metrics.RaftIsLeader.Set(0)
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}
