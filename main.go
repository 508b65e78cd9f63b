package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/cacheops/cachectl/config"
	"github.com/cacheops/cachectl/database"
	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/routes"
	"github.com/cacheops/cachectl/services"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"

	logLevel string
	logJSON  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(models.ExitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "cachectl",
	Short: "cachectl - clustered cache lifecycle orchestrator for Kubernetes",
	Long: `cachectl renders, rolls out, verifies and tears down an
authenticated clustered in-memory cache on Kubernetes. It resolves its
configuration from the environment, adapts the manifests to the target
cluster topology, and only reports success after the deployed cache
demonstrably works.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnv()
		// Flags win over environment.
		if !cmd.Root().PersistentFlags().Changed("log-level") {
			logLevel = config.GetEnv("LOG_LEVEL", logLevel)
		}
		if !cmd.Root().PersistentFlags().Changed("log-json") {
			logJSON, _, _ = config.GetEnvBool("LOG_JSON", logJSON)
		}
		logger.Init(logLevel, logJSON)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of console output")

	inspectCmd.Flags().Bool("test", false, "also run the functional check battery")
	deleteCmd.Flags().Bool("yes", false, "confirm deletion without prompting")
	historyCmd.Flags().String("namespace", "", "filter by namespace")
	historyCmd.Flags().Int("limit", 20, "maximum records to return")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(rolloutCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

// signalContext cancels on SIGINT or SIGTERM so in-flight waits unwind
// instead of being killed mid-poll.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// connectHistory enables rollout history when DATABASE_URL is set. A
// connection failure is fatal only for the history command itself;
// elsewhere it downgrades to a warning.
func connectHistory(required bool) error {
	enabled, err := database.Connect()
	if err != nil {
		if required {
			return err
		}
		lg := logger.WithComponent("history")
		lg.Warn().Err(err).Msg("history database unavailable, recording disabled")
		return nil
	}
	if enabled {
		lg := logger.WithComponent("history")
		lg.Info().Msg("rollout history recording enabled")
	}
	return nil
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render and validate the manifest set without applying it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(config.ActionRender)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		// Rendering works without a reachable cluster; topology then
		// defaults to no spread.
		topology := models.TopologyProfile{}
		if client, err := kubernetes.NewClient(); err == nil {
			topology = services.NewTopologyService(client).Detect(ctx, cfg.ClusterType)
		} else {
			lg := logger.WithComponent("render")
			lg.Warn().Err(err).Msg("no cluster connection, rendering without topology")
		}

		set, err := services.NewRenderService().Render(cfg, topology)
		if err != nil {
			return err
		}
		fmt.Printf("manifest written to %s (hash %s, validated=%t)\n", set.Path, set.Hash[:12], set.Validated)
		return nil
	},
}

var rolloutCmd = &cobra.Command{
	Use:   "rollout",
	Short: "Render, apply, wait for convergence and verify the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(config.ActionRollout)
		if err != nil {
			return err
		}
		if err := connectHistory(false); err != nil {
			return err
		}

		client, err := kubernetes.NewClient()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()
		return services.NewRolloutService(client).Rollout(ctx, cfg)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Report the current deployment state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(config.ActionInspect)
		if err != nil {
			return err
		}

		client, err := kubernetes.NewClient()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		runChecks, _ := cmd.Flags().GetBool("test")
		report, err := services.NewInspectService(client).Inspect(ctx, cfg, runChecks)
		if err != nil {
			return err
		}

		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))

		if runChecks && report.Verification != nil && !report.Verification.Passed() {
			return &models.VerificationError{
				Failed: report.Verification.FailedCount(),
				Total:  len(report.Verification.Checks),
			}
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Tear the deployment down (requires --yes)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(config.ActionDelete)
		if err != nil {
			return err
		}
		if err := connectHistory(false); err != nil {
			return err
		}

		client, err := kubernetes.NewClient()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		confirmed, _ := cmd.Flags().GetBool("yes")
		record := services.NewRecord("delete", cfg)
		err = services.NewDestroyService(client).Destroy(ctx, cfg, confirmed)
		finishRecord(&record, err)
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent rollout and teardown records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectHistory(true); err != nil {
			return err
		}

		history := services.NewHistoryService()
		if !history.Enabled() {
			return &models.ConfigurationError{
				Field:  "DATABASE_URL",
				Reason: "required for the history command",
			}
		}

		namespace, _ := cmd.Flags().GetString("namespace")
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := history.List(namespace, limit)
		if err != nil {
			return err
		}

		encoded, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the pipeline over an authenticated REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectHistory(false); err != nil {
			return err
		}

		client, err := kubernetes.NewClient()
		if err != nil {
			return err
		}

		gin.SetMode(gin.ReleaseMode)
		router := gin.Default()
		router.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			AllowCredentials: true,
		}))

		routes.SetupRoutes(router, client)

		port := config.GetEnv("PORT", "8080")
		lg := logger.WithComponent("api")
		lg.Info().Str("port", port).Msg("API server starting")
		return router.Run(":" + port)
	},
}

func finishRecord(record *models.RolloutRecord, err error) {
	history := services.NewHistoryService()
	if !history.Enabled() {
		return
	}
	record.FinishedAt = time.Now()
	if err != nil {
		record.Outcome = "failed"
		record.Detail = err.Error()
	} else {
		record.Outcome = "succeeded"
	}
	history.Record(*record)
}
