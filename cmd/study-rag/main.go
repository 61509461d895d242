package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/study-rag/internal/app/cli"
)

// withCommonFlags は全コマンド共通の --env / --config フラグを付与する
func withCommonFlags(flags ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:  "env",
			Usage: "環境変数ファイルパス",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "パイプライン設定ファイル（YAML、省略時は PIPELINE_CONFIG_FILE）",
		},
	}, flags...)
}

func subjectFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "subject",
		Usage:    "科目ID（UUID）",
		Required: true,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "study-rag",
		Usage: "学習資料の取り込み・質問応答・問題自動生成を行う RAG システム",
		Commands: []*cli.Command{
			{
				Name:  "subject",
				Usage: "科目管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "科目を作成",
						Flags: withCommonFlags(
							&cli.StringFlag{
								Name:     "name",
								Usage:    "科目名",
								Required: true,
							},
						),
						Action: appcli.SubjectCreateAction,
					},
					{
						Name:   "list",
						Usage:  "科目一覧を表示",
						Flags:  withCommonFlags(),
						Action: appcli.SubjectListAction,
					},
				},
			},
			{
				Name:  "document",
				Usage: "学習ドキュメント管理コマンド",
				Commands: []*cli.Command{
					{
						Name:      "ingest",
						Usage:     "ファイルを取り込み、検索用フラグメントと問題を生成",
						ArgsUsage: "FILE...",
						Flags: withCommonFlags(
							subjectFlag(),
							&cli.StringFlag{
								Name:  "content-type",
								Usage: "コンテンツタイプ（省略時は拡張子・内容から判定）",
							},
							&cli.StringFlag{
								Name:  "topic",
								Usage: "生成する問題に付与するトピックID（UUID）",
							},
							&cli.IntFlag{
								Name:  "questions",
								Usage: "1ドキュメントあたりの生成問題数（0で生成しない、省略時は QUESTIONS_PER_DOCUMENT）",
							},
							&cli.IntFlag{
								Name:  "concurrency",
								Usage: "同時に取り込むファイル数（省略時は INGEST_CONCURRENCY）",
							},
						),
						Action: appcli.DocumentIngestAction,
					},
					{
						Name:   "list",
						Usage:  "科目内のドキュメント一覧を表示",
						Flags:  withCommonFlags(subjectFlag()),
						Action: appcli.DocumentListAction,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "科目の資料に基づいて質問に回答",
				ArgsUsage: "QUESTION",
				Flags: withCommonFlags(
					subjectFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "参照するフラグメント数の上限（0で設定値）",
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照ソースを表示",
					},
				),
				Action: appcli.AskAction,
			},
			{
				Name:  "question",
				Usage: "生成済み問題の管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "科目の問題一覧を表示",
						Flags: withCommonFlags(
							subjectFlag(),
							&cli.BoolFlag{
								Name:  "detail",
								Usage: "選択肢と解説も表示",
							},
						),
						Action: appcli.QuestionListAction,
					},
					{
						Name:  "delete",
						Usage: "問題を削除",
						Flags: withCommonFlags(
							&cli.StringFlag{
								Name:     "id",
								Usage:    "問題ID（UUID）",
								Required: true,
							},
						),
						Action: appcli.QuestionDeleteAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
