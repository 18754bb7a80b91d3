// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentRenderer はジャーナル本文のMarkdownをHTMLに変換し、
// bluemondayの許可リストポリシーでサニタイズしてから返す。
// 本文はユーザー入力のため、生のHTMLは常にサニタイズを通す。
package security

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// ContentRenderer はジャーナル本文とタイトルの表示用変換を行う。
type ContentRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentRenderer はContentRendererを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, hr, h1〜h6, ul, ol, li, blockquote, pre, code, strong, em, del, a, img
//   - script, iframe, style および on* イベント属性は除去
//   - imgのsrcはhttpsのみ
//   - aタグには target="_blank" と rel="noopener noreferrer" を付与
func NewContentRenderer() *ContentRenderer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemes("https", "mailto")
	p.AllowURLSchemeWithCustomPolicy("http", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &ContentRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(htmlrenderer.WithHardWraps()),
		),
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// RenderMarkdown は本文をHTMLに変換してサニタイズする。空文字列には空文字列を返す。
// 変換に失敗した場合はエスケープ済みのプレーンテキストを返す。
func (r *ContentRenderer) RenderMarkdown(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return r.strict.Sanitize(content)
	}
	return r.policy.Sanitize(buf.String())
}

// StripTags はタグを全て取り除いたプレーンテキストを返す。タイトルの保存前に使う。
// bluemondayは残ったテキストをHTMLエスケープするため、エンティティを元に戻す。
func (r *ContentRenderer) StripTags(s string) string {
	return htmlUnescaper.Replace(r.strict.Sanitize(s))
}

var htmlUnescaper = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#34;", `"`,
	"&#39;", "'",
	"&quot;", `"`,
)
