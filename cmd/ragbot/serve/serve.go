// Package servecmder provides the serve command running the ragbot API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/api"
	"github.com/kolzchut/ragbot/pkg/config"
	"github.com/kolzchut/ragbot/pkg/embeddings"
	"github.com/kolzchut/ragbot/pkg/embeddings/ollama"
	"github.com/kolzchut/ragbot/pkg/engine/fusion"
	"github.com/kolzchut/ragbot/pkg/interactions"
	"github.com/kolzchut/ragbot/pkg/llm"
	"github.com/kolzchut/ragbot/pkg/logger"
	"github.com/kolzchut/ragbot/pkg/settings"
	"github.com/kolzchut/ragbot/pkg/store"
	"github.com/kolzchut/ragbot/pkg/store/elastic"
	"github.com/kolzchut/ragbot/pkg/store/inmemory"
	"github.com/kolzchut/ragbot/pkg/updater"
)

type serveCommander struct {
	configDir string
	listen    string
	inMemory  bool
	debug     bool
	logger    *zap.Logger
}

const serveLongDesc string = `Run the ragbot API server.

The server fronts the document store and answering engine, and owns the
configuration store, the interaction queue and the document updater.`

const serveShortDesc string = "Run the ragbot API server"

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
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.configDir, "config", "c", "", "Directory containing config.toml")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for API server to listen on (overrides config)")
	cmd.Flags().BoolVar(&cmder.inMemory, "in-memory", false, "Use the in-memory document store instead of Elasticsearch")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	cfg, err := config.Load(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.listen != "" {
		cfg.Server.Listen = c.listen
	}

	ctx := context.Background()

	driver, err := c.newStoreDriver(cfg)
	if err != nil {
		return err
	}
	defer driver.Close()

	settingsStore, err := settings.New(ctx, driver, cfg.Indices.Configurations, cfg.Settings.CachePeriod, c.logger)
	if err != nil {
		return fmt.Errorf("creating settings store: %w", err)
	}

	var embedder embeddings.Embedder
	if cfg.Embedding.Enabled {
		embedder, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: cfg.Embedding.Target,
			Model:   cfg.Embedding.Model,
		})
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		defer embedder.Close()
	}

	eng := fusion.NewEngine(&fusion.Config{
		Driver:          driver,
		LLM:             c.newLLMClient(cfg, settingsStore),
		Embedder:        embedder,
		EmbeddingPrefix: cfg.Indices.EmbeddingPrefix,
		Logger:          c.logger,
	})

	queue, err := interactions.NewQueue(ctx, &interactions.Config{
		Driver:      driver,
		IndexPrefix: cfg.Indices.InteractionsPrefix,
		QueueSize:   cfg.Interactions.QueueSize,
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating interaction queue: %w", err)
	}

	upd, err := updater.NewService(ctx, &updater.Config{
		Driver:          driver,
		Engine:          eng,
		UpdatesIndex:    cfg.Indices.Updates,
		EmbeddingPrefix: cfg.Indices.EmbeddingPrefix,
		IdentifierField: cfg.Documents.IdentifierField,
		Logger:          c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating updater: %w", err)
	}

	server := api.NewServer(api.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		CodeVersion: cfg.CodeVersion,
		CorpusPath:  cfg.Corpus.Path,
	}, settingsStore, eng, queue, upd, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		queue.Close()
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		if err := server.Shutdown(); err != nil {
			c.logger.Error("shutting down server", zap.Error(err))
		}
		// Drain queued interactions before the store closes.
		queue.Close()
		return nil
	}
}

func (c *serveCommander) newStoreDriver(cfg *config.Config) (store.Driver, error) {
	if c.inMemory {
		c.logger.Info("using in-memory document store")
		return inmemory.NewDriver(), nil
	}

	driver, err := elastic.NewDriver(elastic.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		CloudID:   cfg.Elasticsearch.CloudID,
		APIKey:    cfg.Elasticsearch.APIKey,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to Elasticsearch: %w", err)
	}

	c.logger.Info("using Elasticsearch document store")
	return driver, nil
}

func (c *serveCommander) newLLMClient(cfg *config.Config, st *settings.Store) llm.Client {
	if cfg.LLM.Mock {
		c.logger.Info("using mock answering client")
		return llm.NewMockClient()
	}

	return llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.LLM.Target,
		APIKey:  cfg.LLM.APIKey,
	}, st, c.logger)
}
