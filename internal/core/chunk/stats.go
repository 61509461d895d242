package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TextStats は抽出テキストの統計情報
type TextStats struct {
	Characters int
	Words      int
	Sentences  int
	Tokens     int
}

// TokenCounter はトークン数をカウントする
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は cl100k_base エンコーディングの TokenCounter を作成する
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &TokenCounter{encoding: encoding}, nil
}

// CountTokens はテキストのトークン数を返す
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.encoding == nil {
		// エンコーディングがない場合は概算（3文字で1トークン）
		return utf8.RuneCountInString(text) / 3
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Stats はテキストの文字数・単語数・文数・トークン数を計算する
func (tc *TokenCounter) Stats(text string) TextStats {
	return TextStats{
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
		Sentences:  len(Sentences(text)),
		Tokens:     tc.CountTokens(text),
	}
}
