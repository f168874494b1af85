package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/uptrace/bun/migrate"
	"github.com/x402-Systems/xmr-x402-facilitator/db"
	"github.com/x402-Systems/xmr-x402-facilitator/db/migrations"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/logging"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/service"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/transport"
	"github.com/x402-Systems/xmr-x402-facilitator/price"
	"github.com/x402-Systems/xmr-x402-facilitator/wallet"
)

func main() {

	c := &service.Config{}

	// Load configuration from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := logging.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}

	// Migrate the DB
	startupCtx := context.Background()
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	err = migrator.Init(startupCtx)
	if err != nil {
		logger.Fatalf("Error initializing db migrator: %v", err)
	}
	_, err = migrator.Migrate(startupCtx)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"404"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	// Wallet backend and price feed clients
	walletClient := wallet.NewRPCClient(c.WalletRPCUrl, time.Duration(c.WalletRPCTimeout)*time.Second)
	priceResolver := price.NewResolver(logger,
		time.Duration(c.PriceProviderTimeout)*time.Second,
		price.NewCoinGecko(),
		price.NewKraken(),
	)

	svc := &service.FacilitatorService{
		Config:        c,
		Store:         db.NewInvoiceStore(dbConn),
		Wallet:        walletClient,
		Prices:        priceResolver,
		Logger:        logger,
		InvoicePubSub: service.NewPubsub(),
	}
	logger.Infof("Facilitator configured: network:%s verification_mode:%s", svc.NetworkID(), c.VerificationMode)

	// init echo server
	e := transport.InitEcho(c, logger)

	logMw := transport.CreateLoggingMiddleware(logger)
	// strict rate limit for requests creating invoices or settling payments
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)

	transport.RegisterEndpoints(svc, e, strictRateLimitMiddleware, logMw)

	var backgroundWg sync.WaitGroup
	backGroundCtx, _ := signal.NotifyContext(context.Background(), os.Interrupt)

	// Purge abandoned pending invoices in the background
	backgroundWg.Add(1)
	go func() {
		svc.StartExpiryRoutine(backGroundCtx)
		svc.Logger.Info("Expiry routine done")
		backgroundWg.Done()
	}()

	// Start webhook subscription
	if svc.Config.WebhookUrl != "" {
		backgroundWg.Add(1)
		go func() {
			svc.StartWebhookSubscription(backGroundCtx)
			svc.Logger.Info("Webhook routine done")
			backgroundWg.Done()
		}()
	}

	// Start rabbit publisher
	if svc.Config.RabbitMQUri != "" {
		backgroundWg.Add(1)
		go func() {
			err = svc.StartRabbitMqPublisher(backGroundCtx)
			if err != nil && err != context.Canceled {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}
			svc.Logger.Info("Rabbit invoice publisher done")
			backgroundWg.Done()
		}()
	}

	// Start Prometheus server if necessary
	if svc.Config.EnablePrometheus {
		go transport.StartPrometheusEcho(logger, svc, e)
	}

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	// Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("Facilitator exiting gracefully. Goodbye.")
}
