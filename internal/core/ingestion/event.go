package ingestion

import "context"

// Stage はインジェストの進捗ステージ
type Stage string

const (
	StageExtracted           Stage = "extracted"
	StageTextProcessed       Stage = "text_processed"
	StageChunked             Stage = "chunked"
	StageEmbeddingStarted    Stage = "embedding_started"
	StageEmbeddingComplete   Stage = "embedding_complete"
	StageDocumentPersisted   Stage = "document_persisted"
	StageQuestionsGenerating Stage = "questions_generating"
	StageQuestionsComplete   Stage = "questions_complete"
	StageFailed              Stage = "failed"
)

// 失敗ステージ名（StageError.Stage に入る値）
const (
	FailedAtValidation  = "validation"
	FailedAtExtraction  = "extraction"
	FailedAtChunking    = "chunking"
	FailedAtEmbedding   = "embedding"
	FailedAtPersistence = "persistence"
	FailedAtQuestions   = "questions"
)

// Event はインジェストの進捗イベント。ステージごとに該当するフィールドのみ設定される
type Event struct {
	Stage   Stage
	Percent int

	// Extracted / TextProcessed
	Pages      int
	Characters int
	Words      int
	Tokens     int

	// Chunked / EmbeddingComplete
	Chunks   int
	Embedded int

	// DocumentPersisted 以降
	DocumentID string

	// QuestionsGenerating / QuestionsComplete
	QuestionCurrent int
	QuestionTotal   int
	QuestionsCount  int

	// Failed
	FailedStage string
	Err         error
}

// questionPercent は問題生成中の進捗率（75〜95）を返す
func questionPercent(current, total int) int {
	if total <= 0 {
		return 75
	}
	return 75 + 20*current/total
}

// emit はイベントを送信する。events が nil の場合は何もしない
func emit(ctx context.Context, events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	if ctx.Err() != nil {
		select {
		case events <- ev:
		default:
		}
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
