package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/study-rag/internal/platform/config"
	"github.com/jinford/study-rag/internal/platform/container"
	"github.com/jinford/study-rag/internal/platform/logger"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Container *container.ServiceContainer
	Config    *config.Config
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile, tuningFile string, opts ...container.ContainerOption) (*AppContext, error) {
	cfg, err := config.Load(envFile, tuningFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	opts = append([]container.ContainerOption{container.WithContainerLogger(appLogger)}, opts...)
	cont, err := container.NewContainer(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Container: cont,
		Config:    cfg,
	}, nil
}

// newAppContextFromCommand は --env / --config フラグから AppContext を作成する
func newAppContextFromCommand(ctx context.Context, cmd *cli.Command) (*AppContext, error) {
	return NewAppContext(ctx, cmd.String("env"), cmd.String("config"))
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// truncateString は表示用に文字列を rune 単位で切り詰める
func truncateString(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
