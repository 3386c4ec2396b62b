package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	out := string(RenderMarkdown("**bold** and ![pic](https://example.com/a.png)"))

	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, `referrerpolicy="no-referrer"`)
	assert.NotContains(t, out, "<body>")
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := string(RenderMarkdown("hi <script>alert(1)</script> [x](javascript:alert(1))"))

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestRenderMarkdownCached(t *testing.T) {
	assert.Empty(t, RenderMarkdownCached(""))

	src := "cached *text* " + time.Now().String()
	first := RenderMarkdownCached(src)
	assert.Equal(t, first, RenderMarkdownCached(src))
	assert.True(t, strings.Contains(string(first), "<em>text</em>"))
}

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry evicted")
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	c.Delete("c")
	assert.Equal(t, 1, c.Len())

	expired := NewTTLCache[string](0, -time.Second)
	expired.Set("k", "v")
	_, ok = expired.Get("k")
	assert.False(t, ok)
	assert.Zero(t, expired.Len())
}

func TestStringToInt(t *testing.T) {
	assert.Equal(t, 3, StringToInt("3", 1))
	assert.Equal(t, 1, StringToInt("", 1))
	assert.Equal(t, 1000, StringToInt("-2", 1000))
	assert.Equal(t, 7, StringToInt("abc", 7))
}
