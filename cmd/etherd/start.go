package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/spf13/cobra"

	apiserver "github.com/KimApps/ether/internal/api"
	"github.com/KimApps/ether/internal/service"
	"github.com/KimApps/ether/internal/sessionstore"
	"github.com/KimApps/ether/pkg/approval"
	"github.com/KimApps/ether/pkg/config"
	"github.com/KimApps/ether/pkg/coordinator"
	"github.com/KimApps/ether/pkg/event"
	"github.com/KimApps/ether/pkg/infra"
	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/messaging"
	"github.com/KimApps/ether/pkg/quote"
	"github.com/KimApps/ether/pkg/reporting"
	"github.com/KimApps/ether/pkg/signer"
	"github.com/KimApps/ether/pkg/walletconnect"
	"github.com/KimApps/ether/pkg/withdraw"
)

// NewStartCmd creates a new start command
func NewStartCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "start",
		Short: "Start the wallet service",
		Long:  "Start the wallet service with the specified configuration",
		RunE:  runService,
	}

	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().Bool("debug", false, "Enable debug logging")

	return cmd
}

func runService(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	config.SetEnvConfigPath(configPath)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	environment := cfg.Environment
	logger.Init(environment, debug)

	natsConn, err := messaging.GetNATSConnection(environment, cfg.NATs)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", err)
	}
	pubsub := messaging.NewNATSPubSub(natsConn)

	mqManager := messaging.NewNATsMessageQueueManager(event.StreamName, []string{
		event.SigningResultTopic,
	}, natsConn)
	resultQueue := mqManager.NewMessageQueue(event.SigningResultQueueName)
	defer resultQueue.Close()

	var consulClient *api.Client
	if cfg.StorageType == "consul" {
		consulClient = infra.GetConsulClient(environment)
	}

	store, closeStore, err := sessionstore.New(cfg, consulClient)
	if err != nil {
		logger.Fatal("Failed to create session store", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close session store", err)
		}
	}()

	reporter := reporting.NewLogReporter()

	transport := walletconnect.NewNATSTransport(pubsub, cfg.WCSubjectPrefix)
	adapter := walletconnect.NewAdapter(transport, store, reporter, cfg.WCNamespace, cfg.WCAccount)
	defer func() {
		if err := adapter.Close(); err != nil {
			logger.Error("Failed to close wallet adapter", err)
		}
	}()

	if err := adapter.RestoreSessions(context.Background()); err != nil {
		logger.Error("Failed to restore persisted sessions", err)
	}

	broker := coordinator.New()

	quoteClient := quote.NewClient(
		cfg.BackendURL,
		cfg.BackendAPIKey,
		time.Duration(cfg.QuoteTimeoutSecs)*time.Second,
		uint(cfg.QuoteRetries),
	)
	orchestrator := withdraw.New(quoteClient, quoteClient, broker, reporter)

	publisher := service.NewResultQueuePublisher(resultQueue)
	dispatcher := service.NewDispatcher(broker, func() *approval.Session {
		return approval.NewSession(
			broker,
			signer.MockCredentialSigner{},
			signer.MockSigner{},
			adapter,
			reporter,
			publisher,
		)
	})

	audit := service.NewAuditConsumer(resultQueue)
	if err := audit.Start(); err != nil {
		logger.Fatal("Failed to start audit consumer", err)
	}

	appContext, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(appContext)

	eventLog := apiserver.NewEventLog()
	go eventLog.Collect(appContext, orchestrator.Events())

	server := apiserver.NewServer(appContext, orchestrator, dispatcher, eventLog, audit, environment)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	// Setup signal handling to cancel context on termination signals.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Warn("Shutdown signal received, canceling context...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down HTTP server", err)
		}

		if err := natsConn.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", err)
		}
	}()

	logger.Info("Service is running", "listen_addr", cfg.ListenAddr, "environment", environment)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server error", err)
		return err
	}

	logger.Info("Service stopped")
	return nil
}
