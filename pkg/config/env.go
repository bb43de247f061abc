package config

const (
	EnvPrefix = "LIBRONOVA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "LIBRONOVA_APP_ENV"
	EnvPort     = "LIBRONOVA_APP_PORT"
	EnvLogLevel = "LIBRONOVA_LOG_LEVEL"

	EnvDBDSN        = "LIBRONOVA_DB_DSN"
	EnvDBHost       = "LIBRONOVA_DB_HOST"
	EnvDBUser       = "LIBRONOVA_DB_USER"
	EnvDBName       = "LIBRONOVA_DB_NAME"
	EnvDBSQLitePath = "LIBRONOVA_DB_SQLITE_PATH"
	EnvUseSQLite    = "LIBRONOVA_USE_SQLITE"

	EnvRedisURL = "LIBRONOVA_REDIS_URL"

	EnvDefaultLoanDays = "LIBRONOVA_DEFAULT_LOAN_DAYS"
	EnvMaxLoanDays     = "LIBRONOVA_MAX_LOAN_DAYS"
	EnvDailyFineRate   = "LIBRONOVA_DAILY_FINE_RATE"
	EnvLoanMaxAttempts = "LIBRONOVA_LOAN_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
