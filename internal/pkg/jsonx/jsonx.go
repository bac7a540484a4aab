package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// 大模型返回的内容经常不是纯 JSON：推理模式会在前后输出思考文本，
// 部分模型会用 markdown 代码块包裹。本包负责从这类"脏"输出中提取 JSON 对象。

var markdownFencePattern = regexp.MustCompile(`(?s)^\s*` + "```" + `(?:json)?\s*\n(.*?)\n\s*` + "```" + `\s*$`)

// Clean 清理大模型返回的 JSON 内容
// 移除 markdown 代码块标记和首尾空白
func Clean(content string) string {
	content = strings.TrimSpace(content)

	if matches := markdownFencePattern.FindStringSubmatch(content); len(matches) > 1 {
		content = matches[1]
	}

	// 兜底：处理没有换行的代码块标记
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	return strings.TrimSpace(content)
}

// ExtractObject 从内容中提取第一个完整的 JSON 对象文本
// 逐字符扫描大括号配对，跳过字符串字面量中的大括号和转义字符
func ExtractObject(content string) (string, error) {
	content = Clean(content)

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in content")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return content[start : i+1], nil
				}
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON object in content")
}

// Unmarshal 从脏内容中提取 JSON 对象并反序列化到 v
func Unmarshal(content string, v any) error {
	objText, err := ExtractObject(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(objText), v); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}
