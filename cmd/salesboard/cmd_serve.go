package main

import (
	"fmt"

	"salesboard/internal/app"
	"salesboard/internal/config"
	"salesboard/internal/logger"

	"github.com/spf13/cobra"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard",
	Long: `Run the dashboard HTTP server. When backend.enabled is set the reference
sales API runs in the same process. With --watch, render and log settings are
reloaded when the config file changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "reload render settings when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logFile, err := loadConfig()
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger.Infof("✓ 配置加载成功（环境=%s，看板=%s）", cfg.App.Env, cfg.App.HTTPAddr)

	var a *app.App
	if serveWatch {
		w, err := config.NewWatcher(cfgPath)
		if err != nil {
			return fmt.Errorf("初始化配置监听失败: %w", err)
		}
		applyLogLevel(w.Current())
		a, err = app.NewWatchedApp(w)
		if err != nil {
			return fmt.Errorf("初始化应用失败: %w", err)
		}
	} else {
		a, err = app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("初始化应用失败: %w", err)
		}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("运行失败: %w", err)
	}
	return nil
}
