package htmlscan

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Visitor はテキストイベントを受け取る。
// tag / attrs は直近に開いたタグ（終了タグでリセットされる）。
type Visitor interface {
	HandleText(text, tag string, attrs []html.Attribute)
}

// StartTagVisitor は開始タグも見たい Visitor が実装する。
type StartTagVisitor interface {
	HandleStartTag(tag string, attrs []html.Attribute)
}

// EndTagVisitor は終了タグも見たい Visitor が実装する。
type EndTagVisitor interface {
	HandleEndTag(tag string)
}

// Scan は HTML を1パスで読み、v にイベントを流す。
// 壊れたマークアップではエラーにならない。返すのは読み込みエラーだけ。
func Scan(r io.Reader, v Visitor) error {
	starts, _ := v.(StartTagVisitor)
	ends, _ := v.(EndTagVisitor)

	z := html.NewTokenizer(r)
	var (
		tag   string
		attrs []html.Attribute
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		case html.StartTagToken:
			tag, attrs = readTag(z)
			if starts != nil {
				starts.HandleStartTag(tag, attrs)
			}
		case html.SelfClosingTagToken:
			name, a := readTag(z)
			if starts != nil {
				starts.HandleStartTag(name, a)
			}
			tag, attrs = "", nil
			if ends != nil {
				ends.HandleEndTag(name)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag, attrs = "", nil
			if ends != nil {
				ends.HandleEndTag(string(name))
			}
		case html.TextToken:
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			v.HandleText(text, tag, attrs)
		}
	}
}

// ScanString は文字列版の Scan。
func ScanString(doc string, v Visitor) error {
	return Scan(strings.NewReader(doc), v)
}

func readTag(z *html.Tokenizer) (string, []html.Attribute) {
	name, hasAttr := z.TagName()
	var attrs []html.Attribute
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		attrs = append(attrs, html.Attribute{Key: string(key), Val: string(val)})
	}
	return string(name), attrs
}

// Attr は属性値を返す。
func Attr(attrs []html.Attribute, key string) (string, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasClass は class 属性に name が含まれるかを判定する。
func HasClass(attrs []html.Attribute, name string) bool {
	v, ok := Attr(attrs, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == name {
			return true
		}
	}
	return false
}
