package tips

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Summarize はHTML断片からプレーンテキストの要約を抽出する。
// テキストノードのみを連結し、空白を正規化したうえで
// maxRunes文字に切り詰める。切り詰めた場合は末尾に「…」を付ける。
// パースに失敗した場合はタグを含む元文字列をそのまま切り詰める。
func Summarize(fragment string, maxRunes int) string {
	text := extractText(fragment)
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "…"
}

// extractText はHTML断片の全テキストノードを連結して返す。
func extractText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return fragment
	}

	var sb strings.Builder
	for _, node := range nodes {
		collectText(node, &sb)
	}
	return sb.String()
}

// collectText はノード木を深さ優先で辿り、テキストノードを集める。
// ブロック要素の境界には空白を挿入する。
func collectText(node *html.Node, sb *strings.Builder) {
	if node.Type == html.TextNode {
		sb.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode {
		switch node.Data {
		case "p", "br", "li", "blockquote", "div":
			sb.WriteString(" ")
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, sb)
	}
}
