package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graphpack/internal/demo"
	"github.com/graphpack/internal/service"
	"github.com/graphpack/pkg/config"
	"github.com/graphpack/pkg/pprof"
	"github.com/graphpack/pkg/telemetry"
	"github.com/graphpack/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Pprof flags
	pprofEnabled  bool
	pprofDir      string
	pprofProfiles string

	cfg      *config.Config
	logger   utils.Logger
	shutdown telemetry.ShutdownFunc
	profiler *pprof.Session
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "graphpack",
	Short: "Store and restore entity graphs",
	Long: `graphpack packs object graphs into versioned bundles, stores the encoded
artifacts in local or COS storage and records them in a SQL catalog.

Loading reverses the pipeline: artifacts are downloaded, verified, decoded
and rebuilt with shared references and cycles intact.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			level = utils.LevelDebug
		}
		zl, err := utils.NewZapLogger(level, cfg.Log.Format)
		if err != nil {
			return err
		}
		logger = zl
		utils.SetGlobalLogger(logger)

		shutdown, err = telemetry.Init(cmd.Context())
		if err != nil {
			return err
		}

		if pprofEnabled {
			profiles, err := pprof.ParseProfileTypes(pprofProfiles)
			if err != nil {
				return err
			}
			profiler, err = pprof.Start(pprof.Config{OutputDir: pprofDir, Profiles: profiles}, logger)
			if err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if profiler != nil {
			files, err := profiler.Stop()
			if err != nil {
				logger.Warn("Failed to write profiles: %v", err)
			}
			logger.Info("pprof data saved: %v", files)
			profiler = nil
		}
		if shutdown != nil {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("Failed to flush traces: %v", err)
			}
		}
		if zl, ok := logger.(*utils.ZapLogger); ok {
			_ = zl.Sync()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./graphpack.yaml)")

	rootCmd.PersistentFlags().BoolVar(&pprofEnabled, "pprof", false, "Record runtime profiles for this run")
	rootCmd.PersistentFlags().StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	rootCmd.PersistentFlags().StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")

	binName := BinName()
	rootCmd.Example = `  # Save the sample team graph
  ` + binName + ` demo --key platform

  # Show the stored bundles
  ` + binName + ` inspect platform --format yaml

  # Rebuild the graph and print a summary
  ` + binName + ` load platform

  # Profile a batch save
  ` + binName + ` demo --key bulk --copies 50 --pprof --pprof-profiles cpu,heap,mutex`
}

// openService builds a service over the demo registry and connects its
// storage and catalog.
func openService(ctx context.Context) (*service.Service, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	reg, err := demo.NewRegistry()
	if err != nil {
		return nil, err
	}
	svc, err := service.New(cfg, service.WithLogger(logger), service.WithRegistry(reg))
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
