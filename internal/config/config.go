// Package config loads the service configuration from an env file and the
// process environment, plus the optional YAML role mapping.
package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	ConfigPath string
	Verbose    bool
	LogFormat  string
	ApiGinMode string

	Ip   string
	Port string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	// store
	StoreBackend string
	DBAddress    string
	DBUser       string
	DBPassword   string `secret:"true"`
	DBName       string
	DBSSLMode    string
	AutoMigrate  bool
	MongoURI     string `secret:"true"`
	MongoDB      string

	// local tokens
	JWTSecret       string `secret:"true"`
	JWTKeyID        string
	JWTPreviousKeys []string `secret:"true"`
	JWTTTLMinutes   int
	BcryptCost      int

	// role mapping
	AdminEmails  []string
	MasterEmails []string
	RolesFile    string

	// kc
	KCEnabled    bool
	AuthAddress  string
	Realm        string
	ClientID     string
	ClientSecret string `secret:"true"`
	Audience     string
	KCFederated  bool

	fileErr error
}

// Load reads the env file at path (missing files fall back to the process
// environment and defaults) and returns the resulting configuration. It does
// not log; call Report once the logger is set up.
func Load(path string) Config {
	fileErr := godotenv.Load(path)

	s := strings.Split(path, "/")
	config := Config{
		ConfigPath: s[len(s)-1],
		Verbose:    getBoolEnv("VERBOSE", "true"),
		LogFormat:  getEnv("LOG_FORMAT", "console"),
		ApiGinMode: getEnv("GIN_MODE", "debug"),

		Ip:             getEnv("IP", "0.0.0.0"),
		Port:           getEnv("PORT", "5050"),
		AllowedOrigins: getEnvFields("ALLOW_ORIGINS", []string{"*"}),
		AllowedMethods: getEnvFields("ALLOW_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvFields("ALLOW_HEADERS", []string{"Origin", "Content-Type", "Authorization"}),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DBAddress:    getEnv("DB_ADDRESS", "localhost:5432"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   getEnv("DB_PASSWORD", "postgres"),
		DBName:       getEnv("DB_NAME", "taskhub"),
		DBSSLMode:    getEnv("DB_SSLMODE", "disable"),
		AutoMigrate:  getBoolEnv("AUTO_MIGRATE", "false"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "taskhub"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTKeyID:        getEnv("JWT_KEY_ID", "k1"),
		JWTPreviousKeys: getEnvFields("JWT_PREVIOUS_KEYS", nil),
		JWTTTLMinutes:   getIntEnv("JWT_TTL_MINUTES", 10),
		BcryptCost:      getIntEnv("BCRYPT_COST", bcrypt.DefaultCost),

		AdminEmails:  getEnvFields("ADMIN_EMAILS", nil),
		MasterEmails: getEnvFields("MASTER_EMAILS", nil),
		RolesFile:    getEnv("ROLES_FILE", ""),

		KCEnabled:    getBoolEnv("KC_ENABLED", "false"),
		AuthAddress:  getEnv("AUTH_ADDRESS", "localhost:8080"),
		Realm:        getEnv("KC_REALM", "taskhub"),
		ClientID:     getEnv("KC_CLIENT", "taskhub-api"),
		ClientSecret: getEnv("KC_CLIENT_SECRET", ""),
		Audience:     getEnv("KC_AUDIENCE", "account"),
		KCFederated:  getBoolEnv("KC_FEDERATED", "false"),

		fileErr: fileErr,
	}

	return config
}

// Report logs how the configuration was loaded, and the full dump when
// verbose.
func (cfg Config) Report() {
	if cfg.fileErr != nil {
		log.Warn().Err(cfg.fileErr).Str("path", cfg.ConfigPath).Msg("failed to load the config file, using defaults")
	}
	if cfg.Verbose {
		log.Info().Msg(cfg.String())
	}
}

// Validate reports settings the server cannot start with.
func (cfg Config) Validate() error {
	switch cfg.StoreBackend {
	case BackendMemory, BackendPostgres, BackendMongo:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.JWTKeyID == "" {
		return fmt.Errorf("JWT_KEY_ID must not be empty")
	}
	if cfg.BcryptCost < bcrypt.DefaultCost || cfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.DefaultCost, bcrypt.MaxCost)
	}
	if cfg.JWTTTLMinutes <= 0 {
		return fmt.Errorf("JWT_TTL_MINUTES must be positive")
	}
	if cfg.KCEnabled && cfg.ClientSecret == "" {
		return fmt.Errorf("KC_CLIENT_SECRET is required when KC_ENABLED=true")
	}
	if _, err := cfg.SigningKeys(); err != nil {
		return err
	}
	return nil
}

// PostgresURL builds the DSN used by both pgx and the migrator.
func (cfg Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:   cfg.DBAddress,
		Path:   "/" + cfg.DBName,
	}
	q := u.Query()
	q.Set("sslmode", cfg.DBSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// SigningKeys returns the HS256 key ring: the active JWT_KEY_ID/JWT_SECRET
// pair plus every "kid:secret" entry of JWT_PREVIOUS_KEYS.
func (cfg Config) SigningKeys() (map[string][]byte, error) {
	keys := map[string][]byte{cfg.JWTKeyID: []byte(cfg.JWTSecret)}
	for _, entry := range cfg.JWTPreviousKeys {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kid, secret, ok := strings.Cut(entry, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("malformed JWT_PREVIOUS_KEYS entry, expected kid:secret")
		}
		if kid == cfg.JWTKeyID {
			return nil, fmt.Errorf("previous key %q collides with the active key id", kid)
		}
		keys[kid] = []byte(secret)
	}
	return keys, nil
}

// KeycloakURL is the base URL of the identity provider.
func (cfg Config) KeycloakURL() string {
	if strings.HasPrefix(cfg.AuthAddress, "http://") || strings.HasPrefix(cfg.AuthAddress, "https://") {
		return strings.TrimRight(cfg.AuthAddress, "/")
	}
	return "http://" + cfg.AuthAddress
}

func getEnv(env, fallback string) string {
	if value, exists := os.LookupEnv(env); exists {
		return value
	}

	return fallback
}

func getEnvFields(env string, fallback []string) []string {
	if value, exists := os.LookupEnv(env); exists {
		value = strings.TrimSpace(value)
		if value == "" {
			return fallback
		}
		fields := strings.Split(value, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		return fields
	}

	return fallback
}

func getBoolEnv(env, fallback string) bool {
	if value, exists := os.LookupEnv(env); exists {
		return strings.ToLower(value) == "true"
	}

	return strings.ToLower(fallback) == "true"
}

func getIntEnv(env string, fallback int) int {
	if value, exists := os.LookupEnv(env); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}

	return fallback
}

// String dumps every field, masking the ones tagged secret.
func (cfg Config) String() string {
	var strBuilder strings.Builder

	reflectedValues := reflect.ValueOf(cfg)
	reflectedTypes := reflect.TypeOf(cfg)

	strBuilder.WriteString(fmt.Sprintf("[CFG]CONFIGURATION: %s\n", cfg.ConfigPath))

	for i := range reflectedValues.NumField() {
		field := reflectedTypes.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldValue := reflectedValues.Field(i).Interface()

		if field.Tag.Get("secret") == "true" && !reflectedValues.Field(i).IsZero() {
			fieldValue = "****"
		}

		strBuilder.WriteString(fmt.Sprintf("[CFG]%2d. %-16s -> %v\n", i+1, field.Name, fieldValue))
	}

	return strBuilder.String()
}
