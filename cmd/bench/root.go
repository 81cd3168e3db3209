package bench

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veridian-dash/veridian/api/client"
	"github.com/veridian-dash/veridian/api/common"
	"github.com/veridian-dash/veridian/cmd/util"
	"github.com/veridian-dash/veridian/lib/dash"
)

var (
	apiClient *client.Client

	// BenchCmd load tests a running server through its HTTP API
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Performance testing tool for veridian servers",
		Long:    "Runs each benchmark against a running server. Every benchmark works on its own chat and users and removes them afterwards.",
		Args:    cobra.NoArgs,
		PreRunE: processBenchConfig,
		RunE:    run,
	}
	benchNumThreads = 10
	benchSkip       = make([]string, 0)
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupClientFlags(BenchCmd)

	key := "skip"
	BenchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. create-user,send-message)"))
	key = "threads"
	BenchCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) (err error) {
	if apiClient, err = util.NewClient(cmd); err != nil {
		return err
	}
	benchNumThreads = viper.GetInt("threads")
	benchSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

// benchmark is one named load pattern. setup runs before the timer starts and returns
// the operation and a cleanup.
type benchmark struct {
	name  string
	setup func(ctx context.Context) (op func(ctx context.Context, i int) error, cleanup func(), err error)
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	config := util.GetClientConfig()

	fmt.Println("Performance testing tool for veridian servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", benchNumThreads)
	fmt.Println()

	if _, err := apiClient.Health(ctx); err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}

	fmt.Println("starting tests...")
	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks() {
		if shouldSkip(bm.name) {
			printResult(bm.name, testing.BenchmarkResult{})
			continue
		}
		result := testing.Benchmark(func(b *testing.B) {
			op, cleanup, err := bm.setup(ctx)
			if err != nil {
				log.Printf("(%s) - setup failed: %v\n", bm.name, err)
				b.SkipNow()
			}
			b.Cleanup(cleanup)

			b.SetParallelism(benchNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := op(ctx, counter); err != nil {
						log.Printf("(%s) - %v\n", bm.name, err)
					}
					counter++
				}
			})
		})
		results[bm.name] = result
		printResult(bm.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}
	return nil
}

func benchmarks() []benchmark {
	return []benchmark{
		{name: "create-user", setup: func(ctx context.Context) (func(context.Context, int) error, func(), error) {
			created := xsync.NewMapOf[string, struct{}]()
			op := func(ctx context.Context, i int) error {
				u, err := apiClient.CreateUser(ctx, fmt.Sprintf("bench user %d", i))
				if err == nil {
					created.Store(u.ID, struct{}{})
				}
				return err
			}
			cleanup := func() {
				ids := make([]string, 0, created.Size())
				created.Range(func(id string, _ struct{}) bool {
					ids = append(ids, id)
					return true
				})
				if len(ids) == 0 {
					return
				}
				if _, err := apiClient.DeleteUsers(context.Background(), ids); err != nil {
					log.Printf("(create-user) - error deleting users: %v\n", err)
				}
			}
			return op, cleanup, nil
		}},
		{name: "list-users", setup: func(ctx context.Context) (func(context.Context, int) error, func(), error) {
			op := func(ctx context.Context, _ int) error {
				_, err := apiClient.Users(ctx, "", 0)
				return err
			}
			return op, func() {}, nil
		}},
		{name: "send-message", setup: func(ctx context.Context) (func(context.Context, int) error, func(), error) {
			chat, err := apiClient.CreateChat(ctx, "bench")
			if err != nil {
				return nil, nil, err
			}
			op := func(ctx context.Context, i int) error {
				_, err := apiClient.SendMessage(ctx, chat.ID, "bench", fmt.Sprintf("message %d", i))
				if client.StatusOf(err) == http.StatusConflict {
					return nil // chat locked by another writer
				}
				return err
			}
			return op, deleteChat("send-message", chat.ID), nil
		}},
		{name: "get-messages", setup: func(ctx context.Context) (func(context.Context, int) error, func(), error) {
			chat, err := apiClient.CreateChat(ctx, "bench")
			if err != nil {
				return nil, nil, err
			}
			for i := range 50 {
				if _, err := apiClient.SendMessage(ctx, chat.ID, "bench", fmt.Sprintf("message %d", i)); err != nil {
					return nil, nil, err
				}
			}
			op := func(ctx context.Context, _ int) error {
				_, err := apiClient.Messages(ctx, chat.ID)
				return err
			}
			return op, deleteChat("get-messages", chat.ID), nil
		}},
		{name: "metrics", setup: func(ctx context.Context) (func(context.Context, int) error, func(), error) {
			op := func(ctx context.Context, i int) error {
				_, err := apiClient.Metrics(ctx, dash.Platforms[i%len(dash.Platforms)])
				return err
			}
			return op, func() {}, nil
		}},
		{name: "mixed", setup: func(ctx context.Context) (func(context.Context, int) error, func(), error) {
			chat, err := apiClient.CreateChat(ctx, "bench")
			if err != nil {
				return nil, nil, err
			}
			op := func(ctx context.Context, i int) error {
				var err error
				switch i % 4 {
				case 0:
					_, err = apiClient.SendMessage(ctx, chat.ID, "bench", "mixed")
					if client.StatusOf(err) == http.StatusConflict {
						err = nil
					}
				case 1:
					_, err = apiClient.Messages(ctx, chat.ID)
				case 2:
					_, err = apiClient.Chats(ctx, "", 0)
				case 3:
					_, err = apiClient.AllMetrics(ctx)
				}
				return err
			}
			return op, deleteChat("mixed", chat.ID), nil
		}},
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(benchSkip, test)
}

func deleteChat(bench, id string) func() {
	return func() {
		if _, err := apiClient.DeleteChat(context.Background(), id); err != nil {
			log.Printf("(%s) - error deleting chat: %v\n", bench, err)
		}
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "Timeout", "RetryCount", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, test := range names {
		result := results[test]
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Endpoint,
			config.Timeout.String(),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(benchNumThreads),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}
	return nil
}
