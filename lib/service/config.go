package service

type Config struct {
	DatabaseUri             string `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns        int    `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int    `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int    `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes

	WalletRPCUrl     string `envconfig:"WALLET_RPC_URL" default:"http://127.0.0.1:18083/json_rpc"`
	WalletRPCTimeout int    `envconfig:"WALLET_RPC_TIMEOUT" default:"30"` // seconds

	// Network is the chain the wallet backend runs on (mainnet, stagenet,
	// testnet); it is echoed to clients as "monero:<network>".
	Network string `envconfig:"XMR_NETWORK" default:"mainnet"`

	// VerificationMode selects how /settle validates payments for this
	// deployment: "tx_key" demands a cryptographic transaction proof,
	// "balance" trusts the wallet's own scan of the subaddress.
	VerificationMode      string `envconfig:"VERIFICATION_MODE" default:"tx_key"`
	ConfirmationsRequired uint64 `envconfig:"CONFIRMATIONS_REQUIRED" default:"0"`

	InvoiceExpiry  int `envconfig:"INVOICE_EXPIRY" default:"3600"`  // seconds
	ReaperInterval int `envconfig:"REAPER_INTERVAL" default:"3600"` // seconds

	PricePerAccessUSD    float64 `envconfig:"PRICE_PER_ACCESS_USD" default:"0.10"`
	PriceProviderTimeout int     `envconfig:"PRICE_PROVIDER_TIMEOUT" default:"5"` // seconds

	// Settlement polling absorbs the gap between a client broadcasting a
	// payment and the wallet backend seeing it. Total wall-clock budget is
	// attempts x delay.
	SettlePollAttempts uint64 `envconfig:"SETTLE_POLL_ATTEMPTS" default:"10"`
	SettlePollDelay    int    `envconfig:"SETTLE_POLL_DELAY" default:"3"` // seconds

	Host string `envconfig:"HOST" default:"localhost:3113"`
	Port int    `envconfig:"PORT" default:"3113"`

	SentryDSN              string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	LogFilePath            string  `envconfig:"LOG_FILE_PATH"`

	DefaultRateLimit int `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit  int `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit   int `envconfig:"BURST_RATE_LIMIT" default:"1"`

	EnablePrometheus bool `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort   int  `envconfig:"PROMETHEUS_PORT" default:"9092"`

	WebhookUrl string `envconfig:"WEBHOOK_URL"`

	RabbitMQUri             string `envconfig:"RABBITMQ_URI"`
	RabbitMQInvoiceExchange string `envconfig:"RABBITMQ_INVOICE_EXCHANGE" default:"facilitator_invoice"`
}
