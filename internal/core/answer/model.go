package answer

// NoContentAnswer は関連フラグメントが見つからなかった場合の固定回答
const NoContentAnswer = "アップロードされた資料の中に、この質問に関連する内容は見つかりませんでした。質問の言い回しを変えるか、関連する資料を追加してください。"

// Answer は質問応答の結果を表す
type Answer struct {
	Text      string     // LLMによる回答
	Citations []Citation // 参照したフラグメント（類似度の降順）
}

// Citation は回答の根拠として提示したフラグメント
type Citation struct {
	SectionTitle string  // セクションタイトル（ドキュメント名）
	PageNumber   int     // ページ番号
	Text         string  // フラグメント本文
	Score        float64 // 類似度スコア
}
