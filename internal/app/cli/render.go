package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jinford/study-rag/internal/core/answer"
	"github.com/jinford/study-rag/internal/core/ingestion"
)

var (
	fileStyle    = lipgloss.NewStyle().Bold(true)
	stageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	sourceStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const progressBarWidth = 20

// progressBar は percent を固定幅のバーにする
func progressBar(percent, width int) string {
	percent = max(0, min(percent, 100))
	filled := percent * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// stageDetail はステージごとのペイロードを1行にまとめる
func stageDetail(ev ingestion.Event) string {
	switch ev.Stage {
	case ingestion.StageExtracted:
		return fmt.Sprintf("pages=%d", ev.Pages)
	case ingestion.StageTextProcessed:
		return fmt.Sprintf("chars=%d words=%d tokens=%d", ev.Characters, ev.Words, ev.Tokens)
	case ingestion.StageChunked, ingestion.StageEmbeddingStarted:
		return fmt.Sprintf("chunks=%d", ev.Chunks)
	case ingestion.StageEmbeddingComplete:
		return fmt.Sprintf("embedded=%d", ev.Embedded)
	case ingestion.StageDocumentPersisted:
		return fmt.Sprintf("document=%s", ev.DocumentID)
	case ingestion.StageQuestionsGenerating:
		return fmt.Sprintf("question %d/%d", ev.QuestionCurrent, ev.QuestionTotal)
	case ingestion.StageQuestionsComplete:
		return fmt.Sprintf("questions=%d", ev.QuestionsCount)
	case ingestion.StageFailed:
		return fmt.Sprintf("stage=%s error=%v", ev.FailedStage, ev.Err)
	}
	return ""
}

// formatEvent は進捗イベントを表示用の1行に整形する
func formatEvent(name string, ev ingestion.Event) string {
	stage := stageStyle.Render(string(ev.Stage))
	switch ev.Stage {
	case ingestion.StageFailed:
		stage = errorStyle.Render(string(ev.Stage))
	case ingestion.StageQuestionsComplete:
		stage = successStyle.Render(string(ev.Stage))
	}
	return fmt.Sprintf("%s %s %3d%% %s %s",
		fileStyle.Render(name),
		mutedStyle.Render(progressBar(ev.Percent, progressBarWidth)),
		ev.Percent,
		stage,
		mutedStyle.Render(stageDetail(ev)),
	)
}

// progressPrinter は複数ファイルの進捗を行単位で書き出す（並列インジェスト時も行が混ざらない）
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	names []string
}

func newProgressPrinter(w io.Writer, names []string) *progressPrinter {
	return &progressPrinter{w: w, names: names}
}

func (p *progressPrinter) observe(index int, ev ingestion.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, formatEvent(p.names[index], ev))
}

// formatSummary はファイルごとの最終結果を整形する
func formatSummary(res ingestion.BatchResult) string {
	if res.Err != nil {
		if res.Result != nil {
			// ドキュメントは保存済み
			return fmt.Sprintf("%s %s document=%s %v", errorStyle.Render("✗"), fileStyle.Render(res.Name), res.Result.DocumentID, res.Err)
		}
		return fmt.Sprintf("%s %s %v", errorStyle.Render("✗"), fileStyle.Render(res.Name), res.Err)
	}
	return fmt.Sprintf("%s %s document=%s fragments=%d questions=%d failed_questions=%d",
		successStyle.Render("✓"),
		fileStyle.Render(res.Name),
		res.Result.DocumentID,
		res.Result.FragmentsCount,
		res.Result.QuestionsCount,
		res.Result.FailedQuestions,
	)
}

// formatCitations は回答の参照元を整形する
func formatCitations(citations []answer.Citation) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("--- 参照ソース ---"))
	b.WriteString("\n")
	for i, c := range citations {
		body := fmt.Sprintf("[%d] %s p.%d 類似度: %.1f%%\n%s",
			i+1, c.SectionTitle, c.PageNumber, c.Score*100, truncateString(c.Text, 200))
		b.WriteString(sourceStyle.Render(body))
		b.WriteString("\n")
	}
	return b.String()
}
