package publisher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// PlainText 把 Markdown 转成 LinkedIn 能正常展示的纯文本：
// 强调符号去掉，列表展开成 "• " 段落，链接保留地址。
func PlainText(md string) string {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.TextBlock:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.ListItem:
			if entering {
				b.WriteString(listMarker(node))
			}
		case *ast.List:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteString("\n")
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(src))
			}
		case *ast.Link:
			if !entering {
				dest := string(node.Destination)
				if dest != "" && !strings.HasSuffix(b.String(), dest) {
					fmt.Fprintf(&b, " (%s)", dest)
				}
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteString("\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.Image, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			if entering {
				b.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(blankRunRe.ReplaceAllString(b.String(), "\n\n"))
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "• "
	}
	idx := 0
	for s := item.PreviousSibling(); s != nil; s = s.PreviousSibling() {
		idx++
	}
	return fmt.Sprintf("%d. ", list.Start+idx)
}

// Compose 生成最终发布的正文：Markdown 转纯文本后附上署名。
func Compose(content, attribution string) string {
	body := PlainText(content)
	sig := PlainText(attribution)
	if sig == "" {
		return body
	}
	return body + "\n\n" + sig
}
