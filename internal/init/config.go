package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode       string
	ServerAddr string
	Env        string
	TLSCert    string
	TLSKey     string
	RateLimit  float64

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// Storage
	StoreBackend string
	SQLitePath   string
	Seed         bool
	CSVPath      string

	// Kafka
	KafkaEnabled   bool
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string
}

// Init loads the config using a fresh Viper instance and returns it
func Init() *Config {
	return Load(viper.New())
}

// Load fills a Config from v. Settings come from defaults, env variables,
// config.yaml and config.<CHIRP_ENV>.yaml, the latter merged on top.
func Load(v *viper.Viper) *Config {
	v.SetDefault("MODE", "server")
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("CHIRP_ENV", "")
	v.SetDefault("RATE_LIMIT", 10)

	v.SetDefault("JWT_SECRET", "chirp-dev-secret")
	v.SetDefault("JWT_TTL", "24h")

	v.SetDefault("STORE_BACKEND", "sqlite")
	v.SetDefault("SQLITE_PATH", "data/chirp.db")
	v.SetDefault("SEED", true)
	v.SetDefault("CSV_PATH", "data/chirp_cli_db.csv")

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKER", "localhost:29092")
	v.SetDefault("KAFKA_TOPIC", "chirp-cheeps")
	v.SetDefault("KAFKA_GROUP_ID", "chirp-archiver")
	v.SetDefault("KAFKA_PARTITION", 0)
	v.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	v.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	v.SetDefault("CASSANDRA_HOST", "localhost")
	v.SetDefault("CASSANDRA_KEYSPACE", "chirp")
	v.SetDefault("CASSANDRA_TIMEOUT", "10s")
	// Optional: Cassandra username/password/DC can be empty

	// Load env variables
	v.AutomaticEnv()

	// Optional config file support
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // ignore error if no file

	if env := v.GetString("CHIRP_ENV"); env != "" {
		v.SetConfigName("config." + env)
		_ = v.MergeInConfig()
	}

	return &Config{
		Mode:              v.GetString("MODE"),
		ServerAddr:        v.GetString("SERVER_ADDR"),
		Env:               v.GetString("CHIRP_ENV"),
		TLSCert:           v.GetString("TLS_CERT"),
		TLSKey:            v.GetString("TLS_KEY"),
		RateLimit:         v.GetFloat64("RATE_LIMIT"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTTTL:            parseDuration(v.GetString("JWT_TTL"), 24*time.Hour),
		StoreBackend:      v.GetString("STORE_BACKEND"),
		SQLitePath:        v.GetString("SQLITE_PATH"),
		Seed:              v.GetBool("SEED"),
		CSVPath:           v.GetString("CSV_PATH"),
		KafkaEnabled:      v.GetBool("KAFKA_ENABLED"),
		KafkaBroker:       v.GetString("KAFKA_BROKER"),
		KafkaTopic:        v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      v.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:    v.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:       parseDuration(v.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(v.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:     v.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: v.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: v.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: v.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(v.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       v.GetString("CASSANDRA_DC"),
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}
