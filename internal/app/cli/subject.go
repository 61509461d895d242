package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

// SubjectCreateAction は科目を作成するコマンドのアクション
func SubjectCreateAction(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")
	if name == "" {
		return fmt.Errorf("--name は必須です")
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	subject, err := appCtx.Container.Documents.CreateSubject(ctx, name)
	if err != nil {
		return fmt.Errorf("科目の作成に失敗: %w", err)
	}

	fmt.Printf("科目を作成しました: %s (%s)\n", subject.Name, subject.ID)
	return nil
}

// SubjectListAction は科目一覧を表示するコマンドのアクション
func SubjectListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	subjects, err := appCtx.Container.Documents.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("科目の取得に失敗: %w", err)
	}
	if len(subjects) == 0 {
		fmt.Println("科目はありません")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Created At")
	for _, s := range subjects {
		table.Append(s.ID.String(), s.Name, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	table.Render()
	return nil
}
