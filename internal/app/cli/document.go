package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/ingestion"
)

// DocumentIngestAction はファイルを取り込み、フラグメントと問題を生成するコマンドのアクション
func DocumentIngestAction(ctx context.Context, cmd *cli.Command) error {
	subjectID := cmd.String("subject")
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("取り込むファイルを指定してください")
	}

	topicID := mo.None[uuid.UUID]()
	if topic := cmd.String("topic"); topic != "" {
		id, err := uuid.Parse(topic)
		if err != nil {
			return fmt.Errorf("--topic が不正です: %w", err)
		}
		topicID = mo.Some(id)
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	questionCount := appCtx.Config.Pipeline.Questions.PerDocument
	if cmd.IsSet("questions") {
		questionCount = int(cmd.Int("questions"))
	}
	concurrency := appCtx.Config.Pipeline.Ingest.Concurrency
	if cmd.IsSet("concurrency") {
		concurrency = int(cmd.Int("concurrency"))
	}

	reqs, err := buildRequests(paths, subjectID, cmd.String("content-type"), topicID, questionCount)
	if err != nil {
		return err
	}

	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.File.Name
	}
	printer := newProgressPrinter(os.Stdout, names)

	results := appCtx.Container.Ingestion.IngestAll(ctx, reqs, concurrency, printer.observe)

	var failed int
	fmt.Println()
	for _, res := range results {
		fmt.Println(formatSummary(res))
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d/%d 件の取り込みに失敗しました", failed, len(results))
	}
	return nil
}

// buildRequests はファイルパスからインジェスト要求を組み立てる
func buildRequests(paths []string, subjectID, contentType string, topicID mo.Option[uuid.UUID], questionCount int) ([]ingestion.Request, error) {
	reqs := make([]ingestion.Request, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ファイルの読み込みに失敗: %w", err)
		}
		ct := contentType
		if ct == "" {
			// 拡張子から判定できない場合は抽出器側で内容から推定する
			ct = mime.TypeByExtension(filepath.Ext(path))
		}
		ref, err := filepath.Abs(path)
		if err != nil {
			ref = path
		}
		reqs = append(reqs, ingestion.Request{
			SubjectID: subjectID,
			TopicID:   topicID,
			File: ingestion.File{
				Name:        filepath.Base(path),
				StorageRef:  ref,
				ContentType: ct,
				Content:     content,
			},
			QuestionCount: questionCount,
		})
	}
	return reqs, nil
}

// DocumentListAction は科目内のドキュメント一覧を表示するコマンドのアクション
func DocumentListAction(ctx context.Context, cmd *cli.Command) error {
	subjectID, err := document.ParseSubjectID(cmd.String("subject"))
	if err != nil {
		return err
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docs, err := appCtx.Container.Documents.ListDocumentsBySubject(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("ドキュメントの取得に失敗: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("ドキュメントはありません")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Content Type", "Size", "Created At")
	for _, d := range docs {
		table.Append(
			d.ID.String(),
			truncateString(d.Name, 40),
			d.ContentType,
			fmt.Sprintf("%d", d.Size),
			d.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	table.Render()
	return nil
}
