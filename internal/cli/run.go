package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/berth/internal/config"
	"github.com/mmr-tortoise/berth/internal/launch"
	"github.com/mmr-tortoise/berth/internal/model"
)

// NewRunCommand creates the `run` subcommand: the full launch lifecycle
// (sweep stale instances, allocate a free port, serve until exit).
func NewRunCommand() *cobra.Command {
	var (
		configPath  string
		basePort    int
		maxAttempts int
		logFile     string
		watch       bool
		useDocker   bool
		headless    bool
		autoReload  bool
		enableCORS  bool
		enableXSRF  bool
	)

	cmd := &cobra.Command{
		Use:   "run [app-file]",
		Short: "Launch the app on a free port",
		Long: `Sweeps the candidate ports for stale instances, allocates the first
free port, and starts the app bound to it. Blocks until the app exits
or a termination signal arrives; cleanup runs exactly once on every
exit path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			// Flags override file values only when explicitly set, so the
			// config file keeps authority over untouched options.
			if len(args) == 1 {
				cfg.AppFile = args[0]
			}
			if cmd.Flags().Changed("port") {
				cfg.BasePort = basePort
			}
			if cmd.Flags().Changed("attempts") {
				cfg.MaxAttempts = maxAttempts
			}
			if cmd.Flags().Changed("log-file") {
				cfg.LogFile = logFile
			}
			if cmd.Flags().Changed("watch") {
				cfg.Watch = watch
			}
			if cmd.Flags().Changed("docker") {
				cfg.Docker = useDocker
			}
			if cmd.Flags().Changed("headless") {
				cfg.Headless = headless
			}
			if cmd.Flags().Changed("auto-reload") {
				cfg.AutoReload = autoReload
			}
			if cmd.Flags().Changed("cors") {
				cfg.EnableCORS = enableCORS
			}
			if cmd.Flags().Changed("xsrf") {
				cfg.EnableXSRFProtection = enableXSRF
			}
			if err := cfg.Validate(); err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "invalid options", err)
			}

			return launch.New(cfg).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to berth.jsonc/berth.yaml (default: auto-detect)")
	cmd.Flags().IntVarP(&basePort, "port", "p", config.DefaultBasePort, "First candidate port")
	cmd.Flags().IntVar(&maxAttempts, "attempts", config.DefaultMaxAttempts, "Number of consecutive ports to try")
	cmd.Flags().StringVar(&logFile, "log-file", config.DefaultLogFile, "File receiving a copy of app output")
	cmd.Flags().BoolVar(&watch, "watch", false, "Restart the app when the entry file changes")
	cmd.Flags().BoolVar(&useDocker, "docker", true, "Also stop containers publishing candidate ports")
	cmd.Flags().BoolVar(&headless, "headless", true, "Run the server headless (no browser auto-open)")
	cmd.Flags().BoolVar(&autoReload, "auto-reload", true, "Rerun the app on source changes (server-side)")
	cmd.Flags().BoolVar(&enableCORS, "cors", false, "Enable cross-origin request handling")
	cmd.Flags().BoolVar(&enableXSRF, "xsrf", false, "Enable cross-site request forgery protection")

	return cmd
}

// loadConfig resolves the launch configuration: an explicit --config path,
// else an auto-detected config file in the working directory, else defaults.
func loadConfig(configPath string) (config.Config, error) {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("cannot load config %s", configPath), err)
		}
		return cfg, nil
	}

	if path, found := config.Locate("."); found {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("cannot load config %s", path), err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}
