package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"salesboard/internal/config"
	"salesboard/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "salesboard",
	Short: "Interactive sales chart dashboard",
	Long: `salesboard fetches aggregated sales records from a REST resource and
renders them as a bar, stacked area or pie chart.

Commands:
  serve   - run the dashboard (and the embedded sales API when enabled)
  backend - run only the reference sales API
  render  - fetch once and write the chart as HTML, PNG or JSON
  seed    - load sales from a YAML file into the backend database`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		if logLevel != "" {
			logger.SetLevel(logLevel)
		}
		return nil
	},
}

func init() {
	defaultCfg := os.Getenv("SALESBOARD_CONFIG")
	if defaultCfg == "" {
		defaultCfg = "configs/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultCfg, "config file (env SALESBOARD_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override app.log_level")

	rootCmd.AddCommand(serveCmd, backendCmd, renderCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvFile loads path when it exists. Existing environment variables win.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the config and applies logging settings.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置失败: %w", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志文件失败: %w", err)
	}
	applyLogLevel(cfg)
	return cfg, logFile, nil
}

func applyLogLevel(cfg *config.Config) {
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	logger.SetLevel(cfg.App.LogLevel)
}

func setupLogOutput(path string) (io.Closer, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nopCloser{}, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
