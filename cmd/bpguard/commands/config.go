package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/services"
	"beatpass-guard/internal/shared"
)

// NewConfigCommand creates the config commands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the bpguard configuration.",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file, prompting for the endpoints.",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().Bool("defaults", false, "Write defaults without prompting")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (file, environment and flags).",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	useDefaults, _ := cmd.Flags().GetBool("defaults")
	force, _ := cmd.Flags().GetBool("force")

	if shared.FileExists(configFile) && !force {
		if !shared.GetYesNoInput(fmt.Sprintf("%s already exists. Overwrite? (y/n)", configFile), "n") {
			shared.ColorWarning.Println("⚠️ Configuration left unchanged.")
			return nil
		}
	}

	configService := services.NewConfigService()
	cfg := configService.GetDefaultConfig()
	if !useDefaults {
		cfg.APIURL = shared.GetUserInput(fmt.Sprintf("Enter key_bpm_handler.php URL (e.g., %s)", cfg.APIURL), cfg.APIURL)
		cfg.FingerprintURL = shared.GetUserInput(fmt.Sprintf("Enter fingerprint.php URL (e.g., %s)", cfg.FingerprintURL), cfg.FingerprintURL)
		cfg.PendingStorePath = shared.GetUserInput(fmt.Sprintf("Enter pending store path (e.g., %s)", cfg.PendingStorePath), cfg.PendingStorePath)
	}

	if err := configService.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := configService.SaveConfig(configFile, cfg); err != nil {
		return err
	}
	shared.ColorSuccess.Println("✅ Configuration saved to", configFile)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
