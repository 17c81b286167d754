package cli

import (
	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/utils"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "axon",
	Short: "Cooperative component runtime",
	Long: `axon runs graphs of components that talk through inboxes and outboxes.
It can serve a websocket backplane, attach to one as a client, or run a
small demonstration topology.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

var (
	v       = viper.New()
	cfgFile string
	cfg     = utils.DefaultConfig()
	logger  = zerolog.Nop()
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console or json)")
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log_level",
		"log-format": "log_format",
	})
}

// bindFlags lets each named flag override its config key when set.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if f := fs.Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func initConfig(cmd *cobra.Command, args []string) error {
	loaded, err := utils.LoadConfig(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = utils.NewLogger(cfg, cmd.ErrOrStderr())
	if cfgFile != "" {
		utils.WatchConfig(v, func(c utils.Config) {
			utils.ApplyLevel(c)
			logger.Info().Str("level", c.LogLevel).Msg("config reloaded")
		}, func(err error) {
			logger.Warn().Err(err).Msg("config reload rejected")
		})
	}
	return nil
}

// schedulerOptions maps the loaded config onto scheduler options.
func schedulerOptions() []axon.Option {
	return []axon.Option{
		axon.WithLogger(logger),
		axon.WithDefaultInboxSize(cfg.DefaultInboxSize),
		axon.WithThreadQueueSize(cfg.ThreadQueueSize),
		axon.WithIdleSleep(cfg.TickIdleSleep),
	}
}
