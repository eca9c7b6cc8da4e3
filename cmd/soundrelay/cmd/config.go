package cmd

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/jmylchreest/soundrelay/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing soundrelay configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

Without a config file or environment overrides this prints every option with
its default value, which makes a good starting template:

  soundrelay config dump > .soundrelay.yaml

Configuration can be set via:
  - Config file (.soundrelay.yaml in $HOME, the working directory or /etc/soundrelay)
  - Environment variables (SOUNDRELAY_SERVER_PORT, SOUNDRELAY_DATABASE_DSN, etc.)
  - Command-line flags (for some options)

The signing secret is never printed.`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(fieldType.Name)
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		case config.ByteSize:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Signing.Secret = ""

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return writeConfigDump(cmd.OutOrStdout(), yamlData)
}

func writeConfigDump(w io.Writer, yamlData []byte) error {
	header := `# soundrelay Configuration File
# ==============================
#
# Duration format: 30s, 5m, 1h
# Size format: 32KiB, 1MiB
#
# Environment variable overrides:
#   SOUNDRELAY_SERVER_HOST, SOUNDRELAY_SERVER_PORT
#   SOUNDRELAY_DATABASE_DRIVER, SOUNDRELAY_DATABASE_DSN
#   SOUNDRELAY_SIGNING_SECRET, SOUNDRELAY_AUTH_USER_HEADER
#   SOUNDRELAY_LOGGING_LEVEL, SOUNDRELAY_LOGGING_FORMAT
#   etc.

`
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if _, err := w.Write(yamlData); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
