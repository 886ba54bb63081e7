// Package cmd holds the cobra commands of the fundwatch CLI.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// rootOptions are the persistent flags that are not configuration keys.
type rootOptions struct {
	configFile string
	envFile    string
}

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	v := viper.New()
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "fundwatch",
		Short:        "fundwatch screens fund holdings with AI generated risk reports.",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./fundwatch.yaml if present)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: json or text")
	flags.String("store", "", "store backend: memory, postgres or redis")
	flags.String("database-url", "", "postgres connection URL")
	flags.String("redis-addr", "", "redis address")
	flags.String("snapshot", "", "snapshot JSON file")
	bindFlags(cmd, map[string]string{
		"log.level":          "log-level",
		"log.format":         "log-format",
		"store.backend":      "store",
		"store.database_url": "database-url",
		"store.redis_addr":   "redis-addr",
		"paths.snapshot":     "snapshot",
	}, true)

	cmd.AddCommand(
		shallowCmd(v, opts),
		deepCmd(v, opts),
		syncDeepCmd(v, opts),
		resetCmd(v, opts),
		importCmd(v, opts),
		exportCmd(v, opts),
		candidatesCmd(v, opts),
		snapshotCmd(),
		migrateCmd(v, opts),
	)

	return cmd
}

// configKeyAnnotation marks a flag as an override for a config key.
const configKeyAnnotation = "fundwatch_config_key"

// bindFlags records which config key each flag of cmd overrides. The
// binding itself happens in bindConfigFlags when the command runs, since
// several commands define flags for the same key.
func bindFlags(cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		// Only fails for unknown flag names, which is a programming error.
		if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
			panic(err)
		}
	}
}

// bindConfigFlags binds the annotated flags of the running command to v.
// Unset flags leave the config file, environment and defaults in charge.
func bindConfigFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 || err != nil {
			return
		}
		err = v.BindPFlag(keys[0], f)
	})
	return err
}
