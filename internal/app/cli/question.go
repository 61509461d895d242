package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/question"
)

// QuestionListAction は科目の問題一覧を表示するコマンドのアクション
func QuestionListAction(ctx context.Context, cmd *cli.Command) error {
	subjectID, err := document.ParseSubjectID(cmd.String("subject"))
	if err != nil {
		return err
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	questions, err := appCtx.Container.Questions.ListBySubject(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("問題の取得に失敗: %w", err)
	}
	if len(questions) == 0 {
		fmt.Println("問題はありません")
		return nil
	}

	if cmd.Bool("detail") {
		for i, q := range questions {
			renderQuestionDetail(i+1, q)
		}
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Question", "Answer", "Created At")
	for _, q := range questions {
		table.Append(
			q.ID.String(),
			truncateString(q.Question, 50),
			q.CorrectOption,
			q.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	table.Render()
	return nil
}

func renderQuestionDetail(n int, q *question.Question) {
	fmt.Printf("\n%s\n", headerStyle.Render(fmt.Sprintf("Q%d. %s", n, q.Question)))
	for i, opt := range q.Options {
		tag := question.OptionTags[i]
		line := fmt.Sprintf("  %s) %s", tag, opt)
		if tag == q.CorrectOption {
			line = successStyle.Render(line)
		}
		fmt.Println(line)
	}
	if q.Explanation != "" {
		fmt.Printf("  %s\n", mutedStyle.Render(q.Explanation))
	}
	fmt.Printf("  %s\n", mutedStyle.Render("id: "+q.ID.String()))
}

// QuestionDeleteAction は問題を削除するコマンドのアクション
func QuestionDeleteAction(ctx context.Context, cmd *cli.Command) error {
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("--id が不正です: %w", err)
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	deleted, err := appCtx.Container.Questions.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("問題の削除に失敗: %w", err)
	}
	if !deleted {
		return fmt.Errorf("問題が見つかりません: %s", id)
	}

	fmt.Printf("問題を削除しました: %s\n", id)
	return nil
}
