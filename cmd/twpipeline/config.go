package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/danielbelay23/data-pipelines/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage twpipeline configuration.

Configuration is loaded from, in order of priority:
  - Command line flags
  - Environment variables (TWPIPELINE_*)
  - .env files
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Run:   runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration with secrets masked",
	Run:   runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the resolved configuration",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".twpipeline.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		os.Exit(1)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Set twitter.username and run 'twpipeline auth login'")
	fmt.Fprintln(ui.Out, "2. Run 'twpipeline config validate'")
	fmt.Fprintln(ui.Out, "3. Schedule 'twpipeline run' with cron or a systemd timer")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	display := *cfg
	display.Twitter.AuthToken = mask(display.Twitter.AuthToken)
	display.Twitter.CSRFToken = mask(display.Twitter.CSRFToken)
	display.Twitter.BearerToken = mask(display.Twitter.BearerToken)
	display.Export.PostgresDSN = mask(display.Export.PostgresDSN)
	display.Lock.RedisURL = mask(display.Lock.RedisURL)
	display.Notifications.AMQPURL = mask(display.Notifications.AMQPURL)

	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprint(ui.Out, string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration is invalid", err.Error())
		os.Exit(1)
	}

	if cfg.Twitter.Username == "" {
		ui.PrintWarning("twitter.username is empty; the profile cache or stored cookies must supply the account")
	}
	if _, err := os.Stat(cfg.Storage.DataDir); os.IsNotExist(err) {
		ui.PrintWarning("Data directory does not exist yet and will be created", cfg.Storage.DataDir)
	}
	if cfg.Export.SQLitePath != "" {
		ui.PrintInfo("SQLite export", filepath.Clean(cfg.Export.SQLitePath))
	}
	if cfg.Export.PostgresDSN != "" {
		ui.PrintInfo("Postgres export", mask(cfg.Export.PostgresDSN))
	}
	ui.PrintSuccess("Configuration is valid")
}

// mask hides all but the ends of a secret
func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}
