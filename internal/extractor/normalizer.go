package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"

	"golang.org/x/text/unicode/norm"
)

// 规范化用到的正则，包级预编译
var (
	zeroWidthRegexp = regexp.MustCompile("[\u200b\u200c\u200d\ufeff]")

	// 竖排电话：OCR把一个号码拆到多行
	verticalPhoneRegexps = []struct {
		re   *regexp.Regexp
		repl string
	}{
		// (090)\n1234-5678
		// 号码内的分隔符不能含\n，否则三行形态会被这条半路截走
		{regexp.MustCompile(`\((\d{3})\)[ \t]*\n[ \t]*(\d{4}[-. ]\d{4})`), "($1) $2"},
		// (090)\n1234\n5678
		{regexp.MustCompile(`\((\d{3})\)[ \t]*\n[ \t]*(\d{4})[ \t]*\n[ \t]*(\d{4})`), "($1) $2-$3"},
		// 090\n1234\n5678
		{regexp.MustCompile(`\b(\d{3})[ \t]*\n[ \t]*(\d{4})[ \t]*\n[ \t]*(\d{4})\b`), "($1) $2-$3"},
	}

	// 断行邮箱：@前后被换行切开
	brokenEmailRegexps = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`([A-Za-z0-9._%+\-]+@)[ \t]*\n[ \t]*([A-Za-z0-9.\-]+\.[A-Za-z]{2,})`), "$1$2"},
		{regexp.MustCompile(`([A-Za-z0-9._%+\-]+)[ \t]*\n[ \t]*(@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`), "$1$2"},
	}

	multiBlankRegexp = regexp.MustCompile(`\n{3,}`)
)

// TextNormalizer 在任何抽取开始前清洗原始文本
// 确定性步骤永远执行；LLM竖排修复只在启发式命中且客户端可用时追加一次
type TextNormalizer struct {
	llm *LLMClient
}

// NewTextNormalizer 创建文本规范化器，llm可为nil（纯确定性模式）
func NewTextNormalizer(llm *LLMClient) *TextNormalizer {
	return &TextNormalizer{llm: llm}
}

// Normalize 执行确定性清洗：去零宽字符、NFKC全角折半角、
// 统一换行、拼回断行的电话和邮箱、压缩连续空行
// 对任何输入都不报错，空输入返回空串
func (n *TextNormalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = zeroWidthRegexp.ReplaceAllString(text, "")
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	// NFKC不处理的破折号变体
	text = strings.ReplaceAll(text, "—", "-")
	text = strings.ReplaceAll(text, "–", "-")

	for _, p := range verticalPhoneRegexps {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	for _, p := range brokenEmailRegexps {
		text = p.re.ReplaceAllString(text, p.repl)
	}

	text = multiBlankRegexp.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// LooksVertical 判断文本是否疑似残留竖排：换行很多且短行占比过高
func LooksVertical(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 10 {
		return false
	}

	short := 0
	nonEmpty := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if len([]rune(trimmed)) <= 8 {
			short++
		}
	}
	if nonEmpty < 10 {
		return false
	}
	return float64(short)/float64(nonEmpty) > 0.5
}

// RepairVertical 对疑似竖排的文本发起一次LLM修复
// 输出长度低于输入一半视为模型丢信息，弃用修复结果；
// 任何调用失败都回退到入参，绝不向上冒错
func (n *TextNormalizer) RepairVertical(ctx context.Context, text string) string {
	if n.llm == nil || text == "" {
		return text
	}

	runes := []rune(text)
	segment := text
	rest := ""
	if len(runes) > 1000 {
		segment = string(runes[:1000])
		rest = string(runes[1000:])
	}

	system := "你是文本修复助手。输入的文本可能存在信息被拆到多行的排版问题。" +
		"把被换行切断的电话号码、日期、姓名拼回同一行，保留所有原始信息，只修复断行。" +
		"直接返回修复后的文本，不要任何解释。"
	user := fmt.Sprintf("需要修复的文本：\n%s", segment)

	fixed, err := n.llm.Call(ctx, types.CallVerticalRepair, system, user)
	if err != nil {
		logger.Warn().Err(err).Msg("竖排修复调用失败，沿用确定性结果")
		return text
	}

	fixed = strings.TrimSpace(fixed)
	if len(fixed) < len(segment)/2 {
		logger.Debug().
			Int("input_len", len(segment)).
			Int("output_len", len(fixed)).
			Msg("竖排修复输出过短，弃用")
		return text
	}

	return fixed + rest
}
