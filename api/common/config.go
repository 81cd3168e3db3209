package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/veridian-dash/veridian/lib/store/dstore"
)

// --------------------------------------------------------------------------
// Store configuration
// --------------------------------------------------------------------------

type StoreBackend string

const (
	BackendMemory   StoreBackend = "memory"
	BackendSQLite   StoreBackend = "sqlite"
	BackendPostgres StoreBackend = "postgres"
	BackendS3       StoreBackend = "s3"
	BackendRaft     StoreBackend = "raft"
)

// StoreBackends lists the accepted values of --store.
var StoreBackends = []StoreBackend{BackendMemory, BackendSQLite, BackendPostgres, BackendS3, BackendRaft}

// StoreConfig selects and parameterises the key-value namespace the server runs on.
type StoreConfig struct {
	Backend StoreBackend

	// sqlite
	SQLitePath string

	// postgres
	PostgresDSN   string
	PostgresTable string

	// s3
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	// raft, replicas keep their state in the in-memory engine
	Raft dstore.Config

	// per operation timeout of the remote backends
	Timeout time.Duration
}

// --------------------------------------------------------------------------
// HTTP server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the API server.
type ServerConfig struct {
	// HTTP api settings
	Endpoint        string
	ShutdownTimeout time.Duration
	PageSize        int

	// domain settings
	SeedFile        string
	StrictAlerts    bool
	ExclusiveWrites bool
	MockSeed        uint64

	Store StoreConfig

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("HTTP Server")
	addField("Endpoint", c.Endpoint)
	addField("Shutdown Timeout", c.ShutdownTimeout.String())
	addField("Page Size", strconv.Itoa(c.PageSize))

	addSection("Domain")
	addField("Seed File", orDefault(c.SeedFile, "(built-in)"))
	addField("Strict Alerts", strconv.FormatBool(c.StrictAlerts))
	addField("Exclusive Writes", strconv.FormatBool(c.ExclusiveWrites))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Store")
	addField("Backend", string(c.Store.Backend))
	switch c.Store.Backend {
	case BackendSQLite:
		addField("Path", c.Store.SQLitePath)
	case BackendPostgres:
		addField("DSN", redactDSN(c.Store.PostgresDSN))
		addField("Table", c.Store.PostgresTable)
		addField("Timeout", c.Store.Timeout.String())
	case BackendS3:
		addField("Bucket", c.Store.S3Bucket)
		addField("Prefix", c.Store.S3Prefix)
		addField("Region", c.Store.S3Region)
		addField("Endpoint", orDefault(c.Store.S3Endpoint, "(aws)"))
		addField("Path Style", strconv.FormatBool(c.Store.S3PathStyle))
		addField("Timeout", c.Store.Timeout.String())
	case BackendRaft:
		addSection("RAFT Parameters")
		sb.WriteString(c.Store.Raft.String())
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// HTTP client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint   string
	Timeout    time.Duration
	RetryCount int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	sb.WriteString("\nCLIENT CONFIGURATION\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Endpoint", c.Endpoint))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Timeout", c.Timeout))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Retry Count", c.RetryCount))
	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// redactDSN hides the password of a postgres:// url.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}
