package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/harvestgate/internal/authfilter"
	"github.com/nextlevelbuilder/harvestgate/internal/config"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors/messaging"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors/shortvideo"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors/videoshare"
	"github.com/nextlevelbuilder/harvestgate/internal/httpapi"
	"github.com/nextlevelbuilder/harvestgate/internal/llmagent"
	"github.com/nextlevelbuilder/harvestgate/internal/lockstore"
	"github.com/nextlevelbuilder/harvestgate/internal/pagedriver"
	"github.com/nextlevelbuilder/harvestgate/internal/providers"
	"github.com/nextlevelbuilder/harvestgate/internal/remotebrowser"
	"github.com/nextlevelbuilder/harvestgate/internal/sweeper"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
	"github.com/nextlevelbuilder/harvestgate/internal/tracing"
	"github.com/nextlevelbuilder/harvestgate/internal/upgrade"
)

const analysisSystemPrompt = "你是一个内容分析助手，基于给定的笔记数据输出简明的中文分析报告。"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the harvesting orchestrator HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := tracing.Init(context.Background(), "harvestgate")
	if err != nil {
		slog.Warn("tracing init failed, continuing without export", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	if cfg.Database.PostgresDSN == "" {
		slog.Error("HARVESTGATE_POSTGRES_DSN is not set")
		os.Exit(1)
	}
	db, err := sql.Open("pgx", cfg.Database.PostgresDSN)
	if err != nil {
		slog.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		slog.Error("ping postgres", "error", err)
		os.Exit(1)
	}
	if status, err := upgrade.CheckSchema(db); err != nil {
		slog.Warn("schema check failed", "error", err)
	} else if !status.Compatible {
		slog.Error(upgrade.FormatError(status))
		os.Exit(1)
	}

	if cfg.Redis.URL == "" {
		slog.Error("HARVESTGATE_REDIS_URL is not set")
		os.Exit(1)
	}
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.Error("parse redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	locks := lockstore.NewRedisStore(rdb)
	tasks := taskstore.NewPGTaskStore(db)
	auth := authfilter.New(authfilter.NewPGIdentityStore(db))

	provider, err := buildActiveProvider(cfg.Providers)
	if err != nil {
		slog.Error("build llm provider", "error", err)
		os.Exit(1)
	}
	agent := llmagent.New(provider, provider.DefaultModel(), analysisSystemPrompt)
	planner := llmagent.NewPlanner(provider, provider.DefaultModel())

	deps := connectors.Deps{
		Browser: remotebrowser.NewHTTPClient(cfg.RemoteBrowser.BaseURL, cfg.RemoteBrowser.APIKey),
		Driver: func(ctx context.Context, endpointURL string) (pagedriver.Driver, error) {
			return pagedriver.Connect(ctx, endpointURL)
		},
	}

	registry := connectors.NewRegistry()
	registry.Register("shortvideo", func() (connectors.Connector, error) { return shortvideo.New(deps), nil })
	registry.Register("messaging", func() (connectors.Connector, error) { return messaging.New(), nil })
	registry.Register("videoshare", func() (connectors.Connector, error) { return videoshare.New(deps), nil })

	server := httpapi.NewServer(httpapi.Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		Locks:    locks,
		Tasks:    tasks,
		Registry: registry,
		Auth:     auth,
		Planner:  planner,
		Agent:    agent,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweeper.New(locks, tasks).Run(ctx)

	if err := server.Start(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("harvestgate stopped")
}

func buildActiveProvider(cfg config.ProvidersConfig) (providers.Provider, error) {
	switch cfg.Active {
	case "", "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("providers.anthropic.api_key is not set")
		}
		opts := []providers.AnthropicOption{}
		if cfg.Anthropic.DefaultModel != "" {
			opts = append(opts, providers.WithAnthropicModel(cfg.Anthropic.DefaultModel))
		}
		if cfg.Anthropic.APIBase != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(cfg.Anthropic.APIBase))
		}
		return providers.NewAnthropicProvider(cfg.Anthropic.APIKey, opts...), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("providers.openai.api_key is not set")
		}
		return providers.NewOpenAIProvider("openai", cfg.OpenAI.APIKey, cfg.OpenAI.APIBase, cfg.OpenAI.DefaultModel), nil
	case "dashscope":
		if cfg.DashScope.APIKey == "" {
			return nil, fmt.Errorf("providers.dashscope.api_key is not set")
		}
		return providers.NewDashScopeProvider(cfg.DashScope.APIKey, cfg.DashScope.APIBase, cfg.DashScope.DefaultModel), nil
	default:
		return nil, fmt.Errorf("unknown active provider %q", cfg.Active)
	}
}
