package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"stratlab/internal/app"
	"stratlab/internal/config"
	"stratlab/internal/logger"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	logFile *os.File
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "stratlab",
		Short:         "Daily candle resolution, trade simulation and backtest analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logFile != nil {
				_ = opts.logFile.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $STRATLAB_CONFIG or "+defaultConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override app.log_level")

	cmd.AddCommand(
		newServeCmd(opts),
		newResolveCmd(opts),
		newBacktestCmd(opts),
		newSyncCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() error {
	path := resolveConfigPath(o.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if lvl := strings.TrimSpace(o.logLevel); lvl != "" {
		cfg.App.LogLevel = lvl
	}
	if o.logFile, err = setupLogOutput(cfg.App.LogPath); err != nil {
		return err
	}
	logger.SetLevel(cfg.App.LogLevel)
	if path != "" {
		logger.Infof("✓ 配置加载成功（环境=%s，文件=%s）", cfg.App.Env, path)
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) newApp() (*app.App, error) {
	if o.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	return app.NewApp(o.cfg)
}

// resolveConfigPath: flag > STRATLAB_CONFIG > configs/config.yaml（存在时）> 仅环境变量。
func resolveConfigPath(flag string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("STRATLAB_CONFIG")); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
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

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
