package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	subjectID := cmd.String("subject")
	showSources := cmd.Bool("show-sources")
	limit := int(cmd.Int("limit"))

	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("質問応答を開始",
		"subject", subjectID,
		"question", question,
		"showSources", showSources,
	)

	result, err := appCtx.Container.Answers.Ask(ctx, question, subjectID, limit)
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}

	fmt.Println(result.Text)

	if showSources && len(result.Citations) > 0 {
		fmt.Println()
		fmt.Print(formatCitations(result.Citations))
	}

	slog.Info("質問応答が完了しました", "citations", len(result.Citations))
	return nil
}
