package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/config"
	"beatpass-guard/internal/services"
	"beatpass-guard/internal/shared"
)

const toolVersion = "1.0.0"

// NewRootCommand builds the bpguard command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "bpguard",
		Version: toolVersion,
		Short:   "BeatPassID track protection from the command line.",
		Long: fmt.Sprintf(`bpguard (v%s)

Checks whether a BeatPass track is ready for BeatPassID fingerprinting and runs
the protection sequence against a BeatPass deployment. It allows you to:
- Inspect a track's readiness and fingerprint status.
- Protect a track (save playback URL, fingerprint, duplicate check).
- Watch a form draft and re-render readiness as it changes.
- Populate key/BPM for many tracks at once.`, toolVersion),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", config.DefaultConfigFile, "Path to config.json")
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a .env file with BEATPASS_* overrides")
	rootCmd.PersistentFlags().String("api-url", "", "key_bpm_handler.php URL")
	rootCmd.PersistentFlags().String("fingerprint-url", "", "fingerprint.php URL")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewDashboardCommand())
	rootCmd.AddCommand(NewProtectCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewBPMCommand())
	rootCmd.AddCommand(NewPendingCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewDeleteFingerprintCommand())

	return rootCmd
}

// loadConfig resolves configuration: file, then .env/environment, then flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	if err := config.LoadEnvFile(envFile); err != nil {
		shared.ColorWarning.Printf("⚠️ %v\n", err)
	}

	configService := services.NewConfigService()
	if !shared.FileExists(configFile) {
		shared.ColorInfo.Println("✨ Welcome to bpguard! Creating a default configuration.")
		if err := configService.EnsureConfigExists(configFile); err != nil {
			return nil, fmt.Errorf("failed to save initial config: %w", err)
		}
		shared.ColorSuccess.Println("✅ Configuration saved to", configFile)
	}

	cfg, err := configService.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
	}

	// Command-line flags override config file and environment
	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if fingerprintURL, _ := cmd.Flags().GetString("fingerprint-url"); fingerprintURL != "" {
		cfg.FingerprintURL = fingerprintURL
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	if !cfg.Debug {
		cfg.Debug = shared.IsDebugMode()
	}

	if err := configService.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initConfigAndServices loads configuration and wires the service container.
// Callers must Close the container.
func initConfigAndServices(cmd *cobra.Command) (*config.Config, *services.ServiceContainer, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	container, err := newServices(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, container, nil
}

func newServices(cfg *config.Config) (*services.ServiceContainer, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}
	if cfg.RequestTimeout() <= 0 {
		httpClient.Timeout = 60 * time.Second
	}

	container, err := services.NewServiceContainer(cfg, httpClient)
	if err != nil {
		return nil, err
	}
	shared.DebugPrint(cfg.Debug, "using API %s, fingerprint %s, pending store %s", cfg.APIURL, cfg.FingerprintURL, cfg.PendingStorePath)
	return container, nil
}

// addFormFlags registers the flags describing what the track form holds
func addFormFlags(cmd *cobra.Command) {
	cmd.Flags().String("src", "", "Playback URL entered in the form")
	cmd.Flags().String("key", "", "Musical key entered in the form")
	cmd.Flags().String("scale", "", "Scale entered in the form (Major/Minor)")
	cmd.Flags().String("bpm", "", "BPM entered in the form")
	cmd.Flags().String("draft", "", "Read the form from a JSON draft file instead of flags")
}
