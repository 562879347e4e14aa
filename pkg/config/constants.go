package config

// EnvPrefix namespaces every configuration variable.
const EnvPrefix = "bazario"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "BAZARIO_DB_DSN"
	EnvDBHost = "BAZARIO_DB_HOST"
	EnvDBUser = "BAZARIO_DB_USER"
	EnvDBName = "BAZARIO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
