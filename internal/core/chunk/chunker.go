package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChunkChars はチャンクの最大文字数（デフォルト）
	DefaultMaxChunkChars = 1000

	// DefaultOverlapChars はチャンク間のオーバーラップ文字数（デフォルト: なし）
	DefaultOverlapChars = 0
)

// sentencePattern は終端句読点までを1文として切り出す。
// 終端句読点の連続（"?!" など）は同じ文に含める。
var sentencePattern = regexp.MustCompile(`[^.!?。！？]*[.!?。！？]+`)

// Config はチャンク分割の設定
type Config struct {
	// MaxChunkChars はチャンクの最大文字数（rune数）
	MaxChunkChars int
	// OverlapChars は前チャンク末尾の文を次チャンクへ引き継ぐ最大文字数
	OverlapChars int
}

// DefaultConfig はデフォルトのチャンク設定を返す
func DefaultConfig() Config {
	return Config{
		MaxChunkChars: DefaultMaxChunkChars,
		OverlapChars:  DefaultOverlapChars,
	}
}

// Chunker は文境界を尊重してテキストを一定サイズ以下に分割する
type Chunker struct {
	maxChars     int
	overlapChars int
}

// New は新しい Chunker を作成する
func New(cfg Config) *Chunker {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultMaxChunkChars
	}
	if cfg.OverlapChars < 0 {
		cfg.OverlapChars = 0
	}
	// オーバーラップがチャンク長以上だと次チャンクに新しい文が入らない
	if cfg.OverlapChars >= cfg.MaxChunkChars {
		cfg.OverlapChars = cfg.MaxChunkChars / 2
	}
	return &Chunker{
		maxChars:     cfg.MaxChunkChars,
		overlapChars: cfg.OverlapChars,
	}
}

// Split はオーバーラップなしでテキストを maxChunkChars 以下のチャンクに分割する
func Split(text string, maxChunkChars int) []string {
	return New(Config{MaxChunkChars: maxChunkChars}).Split(text)
}

// MaxChunkChars は設定されたチャンク最大文字数を返す
func (c *Chunker) MaxChunkChars() int {
	return c.maxChars
}

// Split はテキストを文単位に分解し、最大文字数を超えない範囲で貪欲に結合する。
// 最大文字数を超える単一の文はそのまま1チャンクとして返す。
func (c *Chunker) Split(text string) []string {
	units := Sentences(text)
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, unit := range units {
		unitLen := utf8.RuneCountInString(unit)

		if len(current) == 0 {
			current = append(current, unit)
			currentLen = unitLen
			continue
		}

		// 区切りのスペース1文字を含めて判定
		if currentLen+1+unitLen <= c.maxChars {
			current = append(current, unit)
			currentLen += 1 + unitLen
			continue
		}

		chunks = append(chunks, strings.Join(current, " "))

		seed := c.overlapSeed(current, unitLen)
		current = append(seed, unit)
		currentLen = joinedLen(current)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// overlapSeed は直前チャンクの末尾から、オーバーラップ上限と最大文字数に収まる文を選ぶ
func (c *Chunker) overlapSeed(prev []string, nextLen int) []string {
	if c.overlapChars == 0 {
		return nil
	}

	start := len(prev)
	total := 0
	for i := len(prev) - 1; i >= 0; i-- {
		l := utf8.RuneCountInString(prev[i])
		if total > 0 {
			l++
		}
		if total+l > c.overlapChars {
			break
		}
		// 次の文を入れる余地がなければ引き継がない
		if total+l+1+nextLen > c.maxChars {
			break
		}
		total += l
		start = i
	}

	if start == len(prev) {
		return nil
	}
	seed := make([]string, len(prev)-start)
	copy(seed, prev[start:])
	return seed
}

// Sentences はテキストを終端句読点で文単位に分解する。
// 句読点で終わらない末尾テキストも1文として扱う。
func Sentences(text string) []string {
	var units []string

	last := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			units = append(units, s)
		}
		last = loc[1]
	}

	if rest := strings.TrimSpace(text[last:]); rest != "" {
		units = append(units, rest)
	}

	return units
}

func joinedLen(parts []string) int {
	n := 0
	for i, p := range parts {
		if i > 0 {
			n++
		}
		n += utf8.RuneCountInString(p)
	}
	return n
}
