// Package servecmder provides the MindLink API server cobra command.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/api"
	"github.com/mindlinkco/mindlink/pkg/anchor"
	"github.com/mindlinkco/mindlink/pkg/chat"
	"github.com/mindlinkco/mindlink/pkg/config"
	"github.com/mindlinkco/mindlink/pkg/consolidate"
	"github.com/mindlinkco/mindlink/pkg/eventstream"
	eskafka "github.com/mindlinkco/mindlink/pkg/eventstream/kafka"
	"github.com/mindlinkco/mindlink/pkg/eventstream/nop"
	"github.com/mindlinkco/mindlink/pkg/express"
	"github.com/mindlinkco/mindlink/pkg/fusion"
	"github.com/mindlinkco/mindlink/pkg/gateway"
	"github.com/mindlinkco/mindlink/pkg/logger"
	"github.com/mindlinkco/mindlink/pkg/narrative"
	"github.com/mindlinkco/mindlink/pkg/prompt"
	"github.com/mindlinkco/mindlink/pkg/store"
	"github.com/mindlinkco/mindlink/pkg/store/inmemory"
	"github.com/mindlinkco/mindlink/pkg/store/postgres"
	"github.com/mindlinkco/mindlink/pkg/store/sqlite"
)

type serveCommander struct {
	debug  bool
	config *config.Config
	logger *zap.Logger
}

const serveLongDesc string = `Run the MindLink API server.

Configuration comes from config.toml, MINDLINK_ environment variables, and
the flags below, in ascending precedence.`

const serveShortDesc string = "Run the MindLink API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			configDir, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			// Flags win over environment and file values.
			for flagName, key := range map[string]string{
				"listen":   "api.listen",
				"storage":  "storage.provider",
				"sqlite":   "storage.sqlite_path",
				"postgres": "storage.postgres_dsn",
				"gateway":  "gateway.target",
				"model":    "gateway.model",
			} {
				if cmd.Flags().Changed(flagName) {
					value, _ := cmd.Flags().GetString(flagName)
					v.Set(key, value)
				}
			}

			cmder.config = config.FromViper(v)
			return cmder.run()
		},
	}

	cmd.Flags().StringP("listen", "l", "", "Address for the API server to listen on")
	cmd.Flags().String("storage", "", "Storage provider: sqlite, postgres, or inmemory")
	cmd.Flags().StringP("sqlite", "s", "", "Path to the SQLite database")
	cmd.Flags().String("postgres", "", "PostgreSQL connection string")
	cmd.Flags().StringP("gateway", "g", "", "AI hub base URL")
	cmd.Flags().StringP("model", "m", "", "Chat-completion model")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	st, err := c.newStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events := c.newPublisher()
	defer events.Close()

	gw := gateway.NewHubClient(gateway.HubConfig{
		Target:         c.config.Gateway.Target,
		Model:          c.config.Gateway.Model,
		ThinkingEffort: c.config.Gateway.ThinkingEffort,
		MaxTokens:      c.config.Gateway.MaxTokens,
		Timeout:        time.Duration(c.config.Gateway.TimeoutSeconds) * time.Second,
	})

	prompts := prompt.NewRegistry(st)
	anchors := anchor.NewService(st, c.logger)
	consolidator := consolidate.New(st, gw, prompts, events, c.logger)
	synthesizer := narrative.NewSynthesizer(st, gw, prompts, anchors, events, c.logger)
	fusionEngine := fusion.NewEngine(st, gw, prompts, events, c.logger)
	chatService := chat.NewService(st, gw, prompts, anchors, c.logger)
	expressService := express.NewService(st, gw, prompts, anchors, events, c.logger)

	server := api.NewServer(
		api.Config{ListenAddr: c.config.API.Listen},
		api.Services{
			Store:        st,
			Consolidator: consolidator,
			Synthesizer:  synthesizer,
			Anchors:      anchors,
			Fusion:       fusionEngine,
			Chat:         chatService,
			Express:      expressService,
			Prompts:      prompts,
			Events:       events,
		},
		c.logger,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		c.logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := server.Shutdown(); err != nil {
		c.logger.Warn("server shutdown failed", zap.Error(err))
	}

	// In-flight consolidations get to finish before the store closes.
	consolidator.Wait()
	return nil
}

func (c *serveCommander) newStore() (store.Store, error) {
	switch c.config.Storage.Provider {
	case "sqlite":
		st, err := sqlite.New(c.config.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		c.logger.Info("using SQLite storage",
			zap.String("path", c.config.Storage.SQLitePath),
		)
		return st, nil
	case "postgres":
		st, err := postgres.New(c.config.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return st, nil
	case "inmemory", "":
		c.logger.Info("using in-memory storage")
		return inmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", c.config.Storage.Provider)
	}
}

func (c *serveCommander) newPublisher() eventstream.Publisher {
	if !c.config.EventStream.Enabled || len(c.config.EventStream.Brokers) == 0 {
		return nop.NewPublisher()
	}
	c.logger.Info("publishing timeline events to Kafka",
		zap.Strings("brokers", c.config.EventStream.Brokers),
		zap.String("topic", c.config.EventStream.Topic),
	)
	return eskafka.NewPublisher(c.config.EventStream.Brokers, c.config.EventStream.Topic)
}
