package cmd

import (
	"fmt"
	"sort"
	"strings"

	cfgpkg "github.com/KaramelBytes/fracture-cli/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Fracture configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Print(string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk. List values (numeric_columns,
models, forward_fill, ...) take a comma-separated string.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		next, err := setConfigValue(cfg, key, val)
		if err != nil {
			return err
		}
		if err := cfgpkg.Save(next, cfgFile); err != nil {
			return err
		}
		cfg = next
		fmt.Println("Saved config")
		return nil
	},
}

// setConfigValue returns a copy of c with key set to the parsed value. The
// value is parsed as YAML against the key's current type.
func setConfigValue(c *cfgpkg.Global, key, val string) (*cfgpkg.Global, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	fields := map[string]any{}
	if err := yaml.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cur, ok := fields[key]
	if !ok {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(keys, ", "))
	}
	switch cur.(type) {
	case []any:
		list := []any{}
		for _, p := range splitList(val) {
			list = append(list, p)
		}
		fields[key] = list
	case string:
		fields[key] = val
	default:
		var parsed any
		if err := yaml.Unmarshal([]byte(val), &parsed); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		fields[key] = parsed
	}

	out, err := yaml.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	var next cfgpkg.Global
	if err := yaml.Unmarshal(out, &next); err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return &next, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
