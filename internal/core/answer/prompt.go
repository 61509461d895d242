package answer

import (
	"fmt"
	"strings"

	"github.com/jinford/study-rag/internal/core/document"
)

// BuildSystemPrompt は検索済みフラグメントを埋め込んだシステムプロンプトを構築する
func BuildSystemPrompt(fragments []*document.ScoredFragment) string {
	var sb strings.Builder

	sb.WriteString("あなたは学習者の質問に答えるチューターです。\n")
	sb.WriteString("以下の学習資料の抜粋を基に、質問に正確かつ分かりやすく回答してください。\n\n")

	sb.WriteString("## 回答のガイドライン\n")
	sb.WriteString("- 資料に含まれる情報を優先して使用してください\n")
	sb.WriteString("- 資料から判断できない点は、推測せずにその旨を述べてください\n")
	sb.WriteString("- 参照した資料のセクションとページを明示してください\n\n")

	sb.WriteString("## 回答の形式\n")
	sb.WriteString("次の4つのセクションをこの順序で必ず含めてください。\n")
	sb.WriteString("1. Summary: 2〜3文の要約\n")
	sb.WriteString("2. Detailed Explanation: 資料に基づく詳しい説明\n")
	sb.WriteString("3. Key Points: 箇条書きの要点\n")
	sb.WriteString("4. Consulted Sources: 参照したセクション名とページ番号\n\n")

	sb.WriteString("## 学習資料の抜粋\n")
	for i, f := range fragments {
		sb.WriteString(fmt.Sprintf("### [抜粋 %d]\n", i+1))
		sb.WriteString(fmt.Sprintf("セクション: %s\n", f.SectionTitle))
		sb.WriteString(fmt.Sprintf("ページ: %d\n", f.PageNumber))
		sb.WriteString(fmt.Sprintf("類似度: %.1f%%\n", f.Score*100))
		sb.WriteString(f.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
