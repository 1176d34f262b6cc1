package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/harvestgate/internal/config"
	"github.com/nextlevelbuilder/harvestgate/internal/upgrade"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and connectivity health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("harvestgate doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Postgres:")
	checkPostgres(cfg.Database.PostgresDSN)

	fmt.Println()
	fmt.Println("  Redis:")
	checkRedis(cfg.Redis.URL)

	fmt.Println()
	fmt.Println("  Remote browser provider:")
	checkRemoteBrowser(cfg.RemoteBrowser.BaseURL, cfg.RemoteBrowser.APIKey)

	fmt.Println()
	fmt.Println("  LLM providers:")
	checkProvider("Anthropic", cfg.Providers.Anthropic.APIKey, cfg.Providers.Active == "anthropic")
	checkProvider("OpenAI", cfg.Providers.OpenAI.APIKey, cfg.Providers.Active == "openai")
	checkProvider("DashScope", cfg.Providers.DashScope.APIKey, cfg.Providers.Active == "dashscope")

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkPostgres(dsn string) {
	if dsn == "" {
		fmt.Println("    Status:      (not configured — set HARVESTGATE_POSTGRES_DSN)")
		return
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Printf("    Status:      CONNECT FAILED (%s)\n", err)
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Printf("    Status:      CONNECT FAILED (%s)\n", err)
		return
	}
	fmt.Println("    Status:      connected")

	status, err := upgrade.CheckSchema(db)
	if err != nil {
		fmt.Printf("    Schema:      CHECK FAILED (%s)\n", err)
		return
	}
	switch {
	case status.Dirty:
		fmt.Printf("    Schema:      v%d (DIRTY — run: harvestgate migrate force %d)\n", status.CurrentVersion, status.CurrentVersion-1)
	case status.Compatible:
		fmt.Printf("    Schema:      v%d (up to date)\n", status.CurrentVersion)
	case status.CurrentVersion > status.RequiredVersion:
		fmt.Printf("    Schema:      v%d (binary too old, requires v%d)\n", status.CurrentVersion, status.RequiredVersion)
	default:
		fmt.Printf("    Schema:      v%d (upgrade needed — run: harvestgate migrate up)\n", status.CurrentVersion)
	}

	pending, err := upgrade.PendingHooks(ctx, db)
	if err == nil {
		if len(pending) > 0 {
			fmt.Printf("    Data hooks:  %d pending\n", len(pending))
		} else {
			fmt.Println("    Data hooks:  all applied")
		}
	}
}

func checkRedis(url string) {
	if url == "" {
		fmt.Println("    Status:      (not configured — set HARVESTGATE_REDIS_URL)")
		return
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		fmt.Printf("    Status:      INVALID URL (%s)\n", err)
		return
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("    Status:      CONNECT FAILED (%s)\n", err)
		return
	}
	fmt.Println("    Status:      connected")
}

func checkRemoteBrowser(baseURL, apiKey string) {
	if baseURL == "" {
		fmt.Println("    Status:      (not configured — set HARVESTGATE_REMOTE_BROWSER_BASE_URL)")
		return
	}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		fmt.Printf("    Status:      BAD URL (%s)\n", err)
		return
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("    Status:      UNREACHABLE (%s)\n", err)
		return
	}
	defer resp.Body.Close()
	fmt.Printf("    Status:      reachable (HTTP %d)\n", resp.StatusCode)
}

func checkProvider(name, apiKey string, active bool) {
	label := name
	if active {
		label += " (active)"
	}
	if apiKey == "" {
		fmt.Printf("    %-20s (not configured)\n", label+":")
		return
	}
	masked := apiKey
	if len(apiKey) > 8 {
		masked = apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
	}
	fmt.Printf("    %-20s %s\n", label+":", masked)
}
