package scripttools

import (
	"regexp"
	"strings"

	"github.com/go-ego/gse"
)

// ScriptCleaner 剧本文本清理器
// 提取类任务在构建提示词前，先对剧本做统一清理和长度统计
type ScriptCleaner struct {
	segmenter *gse.Segmenter // gse 分词器，用于统计词数（中英文混排）
}

// NewScriptCleaner 创建剧本文本清理器实例
func NewScriptCleaner() (*ScriptCleaner, error) {
	segmenter, err := gse.New()
	if err != nil {
		return nil, err
	}
	return &ScriptCleaner{segmenter: &segmenter}, nil
}

var (
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	multiBlankPattern  = regexp.MustCompile(`\n{3,}`)
	trailingWSPattern  = regexp.MustCompile(`[ \t]+\n`)
)

// Clean 清理剧本文本
// 移除控制字符，规整空行和行尾空白，保留剧本本身的换行结构
func (sc *ScriptCleaner) Clean(text string) string {
	text = controlCharPattern.ReplaceAllString(text, "")
	text = trailingWSPattern.ReplaceAllString(text, "\n")
	text = multiBlankPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// WordCount 统计剧本词数（分词后）
// 用于输入长度限制：按词数比按字节数更贴近模型的 token 消耗
func (sc *ScriptCleaner) WordCount(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	words := sc.segmenter.Cut(text, true)
	count := 0
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			count++
		}
	}
	return count
}

// JoinEpisodes 拼接多集剧本文本，跳过空白内容
// 每集之间用分集标记分隔，便于模型区分剧集边界
func (sc *ScriptCleaner) JoinEpisodes(titles, scripts []string) string {
	var sb strings.Builder
	for i, script := range scripts {
		cleaned := sc.Clean(script)
		if cleaned == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		title := ""
		if i < len(titles) {
			title = titles[i]
		}
		if title != "" {
			sb.WriteString("【" + title + "】\n")
		}
		sb.WriteString(cleaned)
	}
	return sb.String()
}
