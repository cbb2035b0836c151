package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/display"
	"github.com/teranos/vacancy/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage vacancy configuration",
	Long: `am: Manage vacancy configuration ("I am")

Configuration sources (later overrides earlier):
1. Built-in defaults
2. System config (/etc/vacancy/am.toml)
3. User config (~/.vacancy/am.toml)
4. Overrides written by "am set" (~/.vacancy/am_overrides.toml)
5. Project config (./am.toml, searched up from the working directory)
6. Environment variables (VACANCY_* prefix)

Examples:
  vacancy am show                          # Show current configuration
  vacancy am show --format json            # Show configuration in JSON format
  vacancy am get listing.abandon_after_hours
  vacancy am set admission.units_per_minute 60
  vacancy am unset admission.units_per_minute
  vacancy am where                         # Show which source set each value`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, pulse.batch_size)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration override",
	Long: `Write a value to ~/.vacancy/am_overrides.toml. The previous file is kept
as .back1 (up to three generations). Values are read as TOML, so 60 is a number,
true is a boolean and ["a","b"] is a list; anything else is a string.

A running server picks up pricing tier changes without a restart.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration override",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmUnset,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade, which files exist, and the source of
every effective setting. Secrets are masked.`,
	RunE: runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amUnsetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

// redacted returns a copy of cfg safe to print
func redacted(cfg *am.Config) am.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Payment.SecretKey = mask(out.Payment.SecretKey)
	out.Payment.WebhookSecret = mask(out.Payment.WebhookSecret)
	out.Admission.Redis.Password = mask(out.Admission.Redis.Password)
	return out
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	safe := redacted(cfg)
	out := cmd.OutOrStdout()

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(safe, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(safe)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# vacancy configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(safe)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# vacancy configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	v := am.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	path := am.GetOverridesPath()
	if path == "" {
		return errors.New("could not determine home directory")
	}
	value := am.ParseValue(args[1])
	if err := am.SetOverride(path, args[0], value); err != nil {
		return err
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "override written but configuration no longer loads")
	}
	if err := cfg.Validate(); err != nil {
		pterm.Warning.Printfln("Override written, but the configuration is now invalid: %v", err)
		pterm.Info.Printfln("Revert with: vacancy am unset %s", args[0])
		return nil
	}
	pterm.Success.Printfln("%s = %v (%s)", args[0], value, path)
	return nil
}

func runAmUnset(cmd *cobra.Command, args []string) error {
	path := am.GetOverridesPath()
	if path == "" {
		return errors.New("could not determine home directory")
	}
	if err := am.UnsetOverride(path, args[0]); err != nil {
		return err
	}
	pterm.Success.Printfln("Removed %s from %s", args[0], path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		if hints := errors.FlattenHints(err); hints != "" {
			pterm.Info.Println(hints)
		}
		return errors.Wrap(err, "configuration validation failed")
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), intro)
	}

	pterm.DefaultSection.Println("Configuration cascade (later overrides earlier)")
	files := pterm.TableData{{"Layer", "Path", "Present"}}
	files = append(files, []string{string(am.SourceDefault), "built-in", "yes"})
	for i, path := range am.ConfigPaths() {
		present := "no"
		if _, err := os.Stat(path); err == nil {
			present = "yes"
		}
		files = append(files, []string{fmt.Sprintf("%d", i+1), path, present})
	}
	files = append(files, []string{string(am.SourceEnvironment), "VACANCY_*", "-"})
	if err := pterm.DefaultTable.WithHasHeader().WithData(files).Render(); err != nil {
		return err
	}

	pterm.DefaultSection.Println("Effective settings")
	settings := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range intro.Settings {
		settings = append(settings, []string{s.Key, fmt.Sprintf("%v", s.Value), string(s.Source), s.SourcePath})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(settings).Render(); err != nil {
		return err
	}

	summary := intro.Summary()
	sources := make([]string, 0, len(summary))
	for src := range summary {
		sources = append(sources, string(src))
	}
	sort.Strings(sources)
	for _, src := range sources {
		pterm.Info.Printfln("%s: %d settings", src, summary[am.ConfigSource(src)])
	}
	return nil
}
