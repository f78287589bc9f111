package renderer

import (
	"context"
	"testing"
)

func BenchmarkRenderWithLayout(b *testing.B) {
	h := newHarness(b, map[string]string{
		"/views/Post.tmpl":    "layout: Article\npost",
		"/views/Article.tmpl": "layout: Site\n<article>@body</article>",
		"/views/Site.tmpl":    "<site>@body</site>",
	})
	entry, _ := h.reg.LookupByPath("/views/Post.tmpl")
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := h.composer.RenderWithLayout(ctx, entry, nil, false); err != nil {
			b.Fatal(err)
		}
	}
}
