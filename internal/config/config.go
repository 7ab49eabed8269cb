package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/joho/godotenv"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	RevocationPolicyRetain   = "retain"
	RevocationPolicyClawback = "clawback"
)

type Config struct {
	OrganizationName string
	AppName          string
	AppPort          string
	AppUrl           string
	Env              string

	// Storage
	StoreBackend string
	DBUrl        string
	AutoMigrate  bool

	// Allocation policy
	OfferExpiryWindow          time.Duration
	CommissionFallbackPercent  *ledger.Percentage
	RevocationCommissionPolicy string
	RuleCacheTTL               time.Duration

	// Background jobs
	EventDispatchCron string
	OfferExpiryCron   string
	EventMaxAttempts  int
	EventBatchSize    int

	// Twilio / SendGrid for letter-desk and sales-desk notifications
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromPhone  string
	SalesDeskPhone   string
	SendGridAPIKey   string
	SendgridFrom     string
	LetterDeskEmail  string

	// Stripe card payment verification
	StripeSecretKey string
	PaymentCurrency string

	// LaunchDarkly flags
	LDFlag_SendgridSandboxMode       bool
	LDFlag_SeedDbWithTestData        bool
	LDFlag_CORSHighSecurity          bool
	LDFlag_CommissionFallbackEnabled bool
}

const (
	OrganizationName    = "Propty"
	LDConnectionTimeout = 5 * time.Second
	DefaultAppName      = "allocation-service"
)

// build-time overrides
var (
	AppName             string
	LDServerContextKey  = "allocation-service"
	LDServerContextKind = "service"
)

// LoadConfig reads .env (outside production), overlays Bitwarden secrets when
// BWS_ACCESS_TOKEN is set and LaunchDarkly flags when LD_SDK_KEY is set.
// Any invalid setting is fatal.
func LoadConfig() *Config {
	env := os.Getenv("ENV")
	if env != "prod" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			utils.Logger.WithError(err).Warn("Failed to read .env file")
		}
	}

	lookup := os.Getenv
	if token := os.Getenv("BWS_ACCESS_TOKEN"); token != "" {
		secrets := loadBWSSecrets(token)
		lookup = overlay(secrets, os.Getenv)
	}

	cfg, err := loadConfig(lookup)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Invalid configuration")
	}

	if sdkKey := lookup("LD_SDK_KEY"); sdkKey != "" {
		applyLDFlags(cfg, sdkKey)
	}

	utils.Logger.Infof("Loaded config for %s (env=%s, store=%s)", cfg.AppName, cfg.Env, cfg.StoreBackend)
	return cfg
}

func loadBWSSecrets(token string) map[string]string {
	orgID := os.Getenv("BWS_ORG_ID")
	client, err := utils.NewBWSSecretsClient(token, orgID)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to initialize BWSSecretsClient")
	}
	defer client.Close()

	name := appNameOrDefault(os.Getenv("APP_NAME")) + "-" + strings.ToLower(os.Getenv("ENV"))
	secrets, err := client.GetBWSSecrets(name)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to fetch app secrets from BWS")
	}
	return secrets
}

// overlay prefers non-empty secrets over the fallback lookup.
func overlay(secrets map[string]string, fallback func(string) string) func(string) string {
	return func(key string) string {
		if v, ok := secrets[key]; ok && v != "" {
			return v
		}
		return fallback(key)
	}
}

func applyLDFlags(cfg *Config, sdkKey string) {
	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	defer ldClient.Close()
	if !ldClient.Initialized() {
		utils.Logger.Fatal("LaunchDarkly client failed to initialize")
	}

	ctx := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)

	boolFlag := func(name string, def bool) bool {
		v, err := ldClient.BoolVariation(name, ctx, def)
		if err != nil {
			utils.Logger.WithError(err).Fatalf("Error retrieving %s flag", name)
		}
		utils.Logger.Debugf("%s flag: %t", name, v)
		return v
	}

	cfg.LDFlag_SendgridSandboxMode = boolFlag("sendgrid_sandbox_mode", cfg.LDFlag_SendgridSandboxMode)
	cfg.LDFlag_SeedDbWithTestData = boolFlag("seed_db_with_test_data", cfg.LDFlag_SeedDbWithTestData)
	cfg.LDFlag_CORSHighSecurity = boolFlag("cors_high_security", cfg.LDFlag_CORSHighSecurity)
	cfg.LDFlag_CommissionFallbackEnabled = boolFlag("commission_fallback_enabled", cfg.LDFlag_CommissionFallbackEnabled)
}

func appNameOrDefault(name string) string {
	if name != "" {
		return name
	}
	if AppName != "" {
		return AppName
	}
	return DefaultAppName
}

func loadConfig(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		OrganizationName:           OrganizationName,
		AppName:                    appNameOrDefault(getenv("APP_NAME")),
		AppPort:                    get("APP_PORT", "8080"),
		AppUrl:                     get("APP_URL", "http://localhost:8080"),
		Env:                        get("ENV", "dev"),
		StoreBackend:               strings.ToLower(get("STORE_BACKEND", StoreBackendPostgres)),
		DBUrl:                      get("DB_URL", ""),
		RevocationCommissionPolicy: strings.ToLower(get("REVOCATION_COMMISSION_POLICY", RevocationPolicyRetain)),
		EventDispatchCron:          get("EVENT_DISPATCH_CRON", "@every 30s"),
		OfferExpiryCron:            get("OFFER_EXPIRY_CRON", "@every 5m"),
		TwilioAccountSID:           get("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:            get("TWILIO_AUTH_TOKEN", ""),
		TwilioFromPhone:            get("TWILIO_FROM_PHONE", ""),
		SalesDeskPhone:             get("SALES_DESK_PHONE", ""),
		SendGridAPIKey:             get("SENDGRID_API_KEY", ""),
		SendgridFrom:               get("SENDGRID_FROM_EMAIL", "no-reply@propty.ng"),
		LetterDeskEmail:            get("LETTER_DESK_EMAIL", ""),
		StripeSecretKey:            get("STRIPE_SECRET_KEY", ""),
		PaymentCurrency:            strings.ToLower(get("PAYMENT_CURRENCY", "ngn")),
	}

	var err error
	if cfg.AutoMigrate, err = parseBool(get("DB_AUTO_MIGRATE", "false"), "DB_AUTO_MIGRATE"); err != nil {
		return nil, err
	}
	if cfg.OfferExpiryWindow, err = parseDuration(get("OFFER_EXPIRY_WINDOW", "72h"), "OFFER_EXPIRY_WINDOW"); err != nil {
		return nil, err
	}
	if cfg.RuleCacheTTL, err = parseDuration(get("RULE_CACHE_TTL", "10m"), "RULE_CACHE_TTL"); err != nil {
		return nil, err
	}
	if cfg.EventMaxAttempts, err = parsePositiveInt(get("EVENT_MAX_ATTEMPTS", "5"), "EVENT_MAX_ATTEMPTS"); err != nil {
		return nil, err
	}
	if cfg.EventBatchSize, err = parsePositiveInt(get("EVENT_BATCH_SIZE", "100"), "EVENT_BATCH_SIZE"); err != nil {
		return nil, err
	}

	if raw := get("COMMISSION_FALLBACK_PERCENT", ""); raw != "" {
		p, err := ledger.ParsePercentage(raw)
		if err != nil {
			return nil, fmt.Errorf("COMMISSION_FALLBACK_PERCENT: %w", err)
		}
		cfg.CommissionFallbackPercent = &p
	}

	// Flag defaults when LaunchDarkly is not configured.
	if cfg.LDFlag_SendgridSandboxMode, err = parseBool(get("SENDGRID_SANDBOX_MODE", "false"), "SENDGRID_SANDBOX_MODE"); err != nil {
		return nil, err
	}
	if cfg.LDFlag_SeedDbWithTestData, err = parseBool(get("SEED_DB_WITH_TEST_DATA", "false"), "SEED_DB_WITH_TEST_DATA"); err != nil {
		return nil, err
	}
	if cfg.LDFlag_CORSHighSecurity, err = parseBool(get("CORS_HIGH_SECURITY", "false"), "CORS_HIGH_SECURITY"); err != nil {
		return nil, err
	}
	if cfg.LDFlag_CommissionFallbackEnabled, err = parseBool(get("COMMISSION_FALLBACK_ENABLED", "false"), "COMMISSION_FALLBACK_ENABLED"); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DBUrl == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	case StoreBackendMemory:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, cfg.StoreBackend)
	}

	switch cfg.RevocationCommissionPolicy {
	case RevocationPolicyRetain, RevocationPolicyClawback:
	default:
		return nil, fmt.Errorf("REVOCATION_COMMISSION_POLICY must be %q or %q, got %q",
			RevocationPolicyRetain, RevocationPolicyClawback, cfg.RevocationCommissionPolicy)
	}

	return cfg, nil
}

// FallbackCommission returns the configured fallback rate when both the
// percentage and the flag are set.
func (c *Config) FallbackCommission() (ledger.Percentage, bool) {
	if c.CommissionFallbackPercent == nil || !c.LDFlag_CommissionFallbackEnabled {
		return ledger.Percentage{}, false
	}
	return *c.CommissionFallbackPercent, true
}

func (c *Config) Close() {}

func parseBool(v, key string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func parseDuration(v, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parsePositiveInt(v, key string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return n, nil
}
