package config

import (
	"fmt"

	"github.com/jessevdk/go-flags"

	"github.com/artie-labs/medallion/lib/config/constants"
)

type Settings struct {
	Config         Config
	VerboseLogging bool
	// SettingsFilePaths are the pipeline settings documents to run.
	SettingsFilePaths []string
	// Stage forces the stage schema used to validate every settings document.
	Stage constants.StageKind
}

// LoadSettings will take the flags and then parse, loadConfig is optional for testing purposes.
func LoadSettings(args []string, loadConfig bool) (*Settings, error) {
	var opts struct {
		ConfigFilePath    string   `short:"c" long:"config" description:"path to the config file"`
		SettingsFilePaths []string `short:"s" long:"settings" description:"path to a pipeline settings document, can be repeated"`
		Stage             string   `long:"stage" description:"validate settings against this stage" choice:"silver" choice:"gold"`
		Verbose           bool     `short:"v" long:"verbose" description:"debug logging" optional:"true"`
	}

	if _, err := flags.ParseArgs(&opts, args); err != nil {
		return nil, fmt.Errorf("failed to parse args: %w", err)
	}

	settings := &Settings{
		VerboseLogging:    opts.Verbose,
		SettingsFilePaths: opts.SettingsFilePaths,
		Stage:             constants.StageKind(opts.Stage),
	}

	if loadConfig {
		if len(opts.SettingsFilePaths) == 0 {
			return nil, fmt.Errorf("at least one settings document is required")
		}

		config, err := readFileToConfig(opts.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		if err = config.Validate(); err != nil {
			return nil, fmt.Errorf("failed to validate config: %w", err)
		}

		settings.Config = *config
	}

	return settings, nil
}
