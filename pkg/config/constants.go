package config

const (
	EnvPrefix = "LEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	MirPayModeProduction = "production"
)

const (
	EnvAppEnv = "LEDGER_APP_ENV"
	EnvPort   = "LEDGER_APP_PORT"

	EnvDBDSN  = "LEDGER_DB_DSN"
	EnvDBHost = "LEDGER_DB_HOST"
	EnvDBUser = "LEDGER_DB_USER"
	EnvDBName = "LEDGER_DB_NAME"

	EnvRedisURL  = "LEDGER_REDIS_URL"
	EnvJWTSecret = "LEDGER_JWT_SECRET"
	EnvJWTIssuer = "LEDGER_JWT_ISSUER"

	EnvWithdrawalCommissionRate = "LEDGER_WITHDRAWAL_COMMISSION_RATE"
	EnvMinWithdrawalAmount      = "LEDGER_MIN_WITHDRAWAL_AMOUNT"
	EnvVerificationWindow       = "LEDGER_VERIFICATION_WINDOW"

	EnvMirPayMode    = "LEDGER_MIRPAY_MODE"
	EnvMirPayAPIKey  = "LEDGER_MIRPAY_API_KEY"
	EnvMirPayBaseURL = "LEDGER_MIRPAY_BASE_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
