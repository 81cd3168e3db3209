package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/veridian-dash/veridian/api/common"
	"github.com/veridian-dash/veridian/api/server"
	"github.com/veridian-dash/veridian/api/tracing"
	cmdUtil "github.com/veridian-dash/veridian/cmd/util"
	"github.com/veridian-dash/veridian/lib/store/dstore"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the veridian API server",
		Long:    `Start the veridian API server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is VERIDIAN_<flag> (e.g. VERIDIAN_STORE=sqlite)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	flags := ServeCmd.PersistentFlags()

	// http api
	key := "endpoint"
	flags.String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen"))

	key = "shutdown-timeout"
	flags.Duration(key, 10*time.Second, cmdUtil.WrapString("How long in-flight requests may take after a shutdown signal"))

	key = "page-size"
	flags.Int(key, 20, cmdUtil.WrapString("Default number of items of a list page when no limit is given"))

	key = "log-level"
	flags.String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error). In debug mode every request is logged"))

	// domain
	key = "seed-file"
	flags.String(key, "", cmdUtil.WrapString("YAML file with the users and chats inserted on first listing (default: built-in fixtures)"))

	key = "strict-alerts"
	flags.Bool(key, false, cmdUtil.WrapString("Validate saved alert configurations against the JSON schema"))

	key = "exclusive-writes"
	flags.Bool(key, false, cmdUtil.WrapString("Lock a chat while a message is appended. Concurrent writers get 409 instead of silently losing a message"))

	key = "mock-seed"
	flags.Uint64(key, 0, cmdUtil.WrapString("Seed of the mock metrics generator (0 = random)"))

	// store
	key = "store"
	flags.String(key, string(common.BackendMemory), cmdUtil.WrapString("Store backend (memory, sqlite, postgres, s3, raft)"))

	key = "sqlite-path"
	flags.String(key, "data/veridian.db", cmdUtil.WrapString("(sqlite) Path of the database file"))

	key = "postgres-dsn"
	flags.String(key, "postgres://localhost/veridian?sslmode=disable", cmdUtil.WrapString("(postgres) Connection string"))

	key = "postgres-table"
	flags.String(key, "veridian_kv", cmdUtil.WrapString("(postgres) Table holding the entities"))

	key = "s3-bucket"
	flags.String(key, "", cmdUtil.WrapString("(s3) Bucket holding the entities"))

	key = "s3-prefix"
	flags.String(key, "veridian/", cmdUtil.WrapString("(s3) Prefix of every object key"))

	key = "s3-region"
	flags.String(key, "us-east-1", cmdUtil.WrapString("(s3) Region of the bucket"))

	key = "s3-endpoint"
	flags.String(key, "", cmdUtil.WrapString("(s3) Custom endpoint, e.g. a MinIO server"))

	key = "s3-path-style"
	flags.Bool(key, false, cmdUtil.WrapString("(s3) Use path style addressing (required by most MinIO setups)"))

	key = "timeout"
	flags.Duration(key, 5*time.Second, cmdUtil.WrapString("(postgres, s3, raft) Timeout of a single store operation"))

	// raft
	key = "replica-id"
	flags.String(key, "", cmdUtil.WrapString("(raft) ReplicaID is the unique name of this replica (e.g. 'node-1')"))

	key = "cluster-members"
	flags.String(key, "", cmdUtil.WrapString("(raft) ClusterMembers is a comma-separated list of replica addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "join"
	flags.Bool(key, false, cmdUtil.WrapString("(raft) Join an already running cluster instead of bootstrapping it"))

	key = "data-dir"
	flags.String(key, "data", cmdUtil.WrapString("(raft) DataDir is the directory used for the raft log and snapshots"))

	key = "rtt-millisecond"
	flags.Uint64(key, 100, cmdUtil.WrapString("(raft) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two replicas. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value) are derived from this value"))

	key = "snapshot-entries"
	flags.Uint64(key, 10, cmdUtil.WrapString("(raft) SnapshotEntries defines how often the state machine should be snapshotted automatically, in applied raft log entries. 0 disables automatic snapshots (not recommended)"))

	key = "compaction-overhead"
	flags.Uint64(key, 5, cmdUtil.WrapString("(raft) CompactionOverhead defines the number of log entries kept after a snapshot. Recommended value is about 1/2 of SnapshotEntries"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.ShutdownTimeout = viper.GetDuration("shutdown-timeout")
	serveCmdConfig.PageSize = viper.GetInt("page-size")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.SeedFile = viper.GetString("seed-file")
	serveCmdConfig.StrictAlerts = viper.GetBool("strict-alerts")
	serveCmdConfig.ExclusiveWrites = viper.GetBool("exclusive-writes")
	serveCmdConfig.MockSeed = viper.GetUint64("mock-seed")

	if serveCmdConfig.PageSize <= 0 {
		return fmt.Errorf("page-size must be positive, got %d", serveCmdConfig.PageSize)
	}
	if _, err := common.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	sc := &serveCmdConfig.Store
	sc.Backend = common.StoreBackend(viper.GetString("store"))
	if !slices.Contains(common.StoreBackends, sc.Backend) {
		return fmt.Errorf("invalid store backend %q (expected one of: %v)", sc.Backend, common.StoreBackends)
	}
	sc.SQLitePath = viper.GetString("sqlite-path")
	sc.PostgresDSN = viper.GetString("postgres-dsn")
	sc.PostgresTable = viper.GetString("postgres-table")
	sc.S3Bucket = viper.GetString("s3-bucket")
	sc.S3Prefix = viper.GetString("s3-prefix")
	sc.S3Region = viper.GetString("s3-region")
	sc.S3Endpoint = viper.GetString("s3-endpoint")
	sc.S3PathStyle = viper.GetBool("s3-path-style")
	sc.Timeout = viper.GetDuration("timeout")

	if sc.Backend != common.BackendRaft {
		return nil
	}

	// raft only
	sc.Raft = dstore.Config{
		Join:               viper.GetBool("join"),
		DataDir:            viper.GetString("data-dir"),
		RTTMillisecond:     viper.GetUint64("rtt-millisecond"),
		SnapshotEntries:    viper.GetUint64("snapshot-entries"),
		CompactionOverhead: viper.GetUint64("compaction-overhead"),
		Timeout:            sc.Timeout,
	}
	id := viper.GetString("replica-id")
	if id == "" {
		return fmt.Errorf("replica-id is required for the raft store")
	}
	sc.Raft.ReplicaID = dstore.ReplicaID(id)

	members, err := dstore.ParseClusterMembers(viper.GetString("cluster-members"))
	if err != nil {
		return err
	}
	sc.Raft.ClusterMembers = members
	return sc.Raft.Validate()
}

// run starts the API server and blocks until SIGINT or SIGTERM
func run(cmd *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	fmt.Println(serveCmdConfig.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProviderFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			server.Logger.Warningf("tracing shutdown: %v", err)
		}
	}()
	otel.SetTracerProvider(provider.TracerProvider())
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	st, err := serveCmdConfig.Store.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			server.Logger.Errorf("close store: %v", err)
		}
	}()

	opts := []server.Option{}
	if provider.Enabled() {
		opts = append(opts, server.WithTracing(provider))
	}
	srv, err := server.New(*serveCmdConfig, st, opts...)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
