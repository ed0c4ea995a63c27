package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/audit"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/config"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/coordinator"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/election"
	leasestore "github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/lease"
	relayzmq "github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/relay"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/session"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/store"
	leasepkg "github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/lease"
	storepkg "github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/store"
)

const (
	appName    = "coordd"
	appVersion = "1.0.0"
)

func main() {
	cfg := config.Load()

	var (
		replicaID    = flag.Int("replica-id", cfg.ReplicaID, "Replica identity used in lease ownership")
		brokerAddr   = flag.String("broker", cfg.BrokerAddr, "Request broker backend endpoint")
		proxyAddr    = flag.String("proxy", cfg.ProxyAddr, "Fan-out proxy endpoint")
		dataDir      = flag.String("data-dir", cfg.DataDir, "Directory for file-backed collections and the lease lock")
		storeBackend = flag.String("store", cfg.StoreBackend, "Persistence backend: file or redis")
		leaseBackend = flag.String("lease", cfg.LeaseBackend, "Lease backend: file or redis")
		showVersion  = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg.ReplicaID = *replicaID
	cfg.BrokerAddr = *brokerAddr
	cfg.ProxyAddr = *proxyAddr
	cfg.DataDir = *dataDir
	cfg.StoreBackend = *storeBackend
	cfg.LeaseBackend = *leaseBackend

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	log.Printf("starting %s v%s as replica %d (store=%s lease=%s)",
		appName, appVersion, cfg.ReplicaID, cfg.StoreBackend, cfg.LeaseBackend)

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("replica stopped with error: %v", err)
	}
	log.Printf("replica %d stopped", cfg.ReplicaID)
}

func run(cfg config.Config) error {
	gateway, err := buildGateway(cfg)
	if err != nil {
		return err
	}
	defer closeIfCloser(gateway)

	leases, err := buildLeaseStore(cfg)
	if err != nil {
		return err
	}
	defer closeIfCloser(leases)

	dialer, err := relayzmq.NewZMQDialer(relayzmq.Config{
		BrokerAddr: cfg.BrokerAddr,
		ProxyAddr:  cfg.ProxyAddr,
	})
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(cfg.AuthSecret, cfg.SessionTTL, cfg.BotPrefixes)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	auditLog, err := buildAuditLog(cfg)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	coord, err := coordinator.New(cfg.ReplicaID, gateway, dialer, sessions, auditLog)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	manager, err := election.NewManager(cfg.ReplicaID, leases, coord,
		cfg.HeartbeatInterval, cfg.HeartbeatTimeout)
	if err != nil {
		return fmt.Errorf("failed to create election manager: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return manager.Run(ctx)
}

func buildGateway(cfg config.Config) (storepkg.Gateway, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return store.NewRedisGateway(cfg.RedisAddr), nil
	default:
		gw, err := store.NewFileGateway(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create file gateway: %w", err)
		}
		return gw, nil
	}
}

func buildLeaseStore(cfg config.Config) (leasepkg.Store, error) {
	switch cfg.LeaseBackend {
	case config.BackendRedis:
		return leasestore.NewRedisStore(cfg.RedisAddr), nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		return leasestore.NewFileStore(filepath.Join(cfg.DataDir, "leader.lock")), nil
	}
}

func buildAuditLog(cfg config.Config) (audit.Log, error) {
	switch cfg.AuditBackend {
	case config.BackendKafka:
		return audit.NewKafkaLog(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.BackendNone:
		return audit.Nop{}, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.AuditPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit dir: %w", err)
		}
		fileLog, err := audit.NewFileLog(cfg.AuditPath)
		if err != nil {
			return nil, err
		}
		return fileLog, nil
	}
}

func closeIfCloser(v any) {
	if closer, ok := v.(io.Closer); ok {
		closer.Close()
	}
}
