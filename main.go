package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/chirp/cmd/cli"
	"example.com/chirp/cmd/server"
	"example.com/chirp/cmd/worker"
	appkafka "example.com/chirp/internal/broker"
	"example.com/chirp/internal/chirp"
	"example.com/chirp/internal/csvdb"
	config "example.com/chirp/internal/init"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/store"
)

var revision = "local"

var logg = logger.New()

func main() {
	defer logg.Sync()

	// Initialize application configuration
	cfg := config.Init()

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archive := csvdb.NewCheepDatabase(cfg.CSVPath)

	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	var err error
	switch cfg.Mode {
	case "server":
		err = runServer(ctx, cfg, kafkaCfg)
	case "worker":
		// Start the worker that archives cheeps from Kafka into the CSV file
		reader := appkafka.NewKafkaReader(kafkaCfg)
		w := worker.New(archive, reader, 0, 0)
		w.Run(ctx)
		err = w.Close()
	case "legacy":
		server.Run(ctx, server.LegacyRoutes(archive, revision), cfg.ServerAddr, cfg.TLSCert, cfg.TLSKey)
	case "cli":
		root := cli.NewRootCmd(cli.Env{DB: archive})
		root.SetArgs(os.Args[1:])
		err = root.ExecuteContext(ctx)
	default:
		logg.Error("main", "Unknown mode "+cfg.Mode, nil)
		os.Exit(2)
	}

	if err != nil {
		logg.Error("main", "Stopped with error", err)
		logg.Sync()
		os.Exit(1)
	}
	logg.Info("main", "Shutdown completed")
}

func runServer(ctx context.Context, cfg *config.Config, kafkaCfg appkafka.KafkaConfig) error {
	st, err := store.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var opts []chirp.Option
	if cfg.KafkaEnabled {
		kafkaWriter, err := appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			return err
		}
		defer kafkaWriter.Close()
		opts = append(opts, chirp.WithPublisher(&appkafka.CheepPublisher{Writer: kafkaWriter}))
	}
	svc := chirp.New(st, opts...)

	if cfg.Seed {
		if err := svc.Seed(ctx); err != nil {
			return err
		}
	}

	srv := server.New(svc, server.Options{
		Secret:    []byte(cfg.JWTSecret),
		TokenTTL:  cfg.JWTTTL,
		RateLimit: cfg.RateLimit,
		Version:   revision,
		Secure:    cfg.TLSCert != "" && cfg.TLSKey != "",
	})
	server.Run(ctx, srv.Routes(), cfg.ServerAddr, cfg.TLSCert, cfg.TLSKey)
	return nil
}
