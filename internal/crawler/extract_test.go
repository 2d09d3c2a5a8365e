package crawler

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<html><body>
<h1 id="firstHeading"><span class="mw-page-title-main">Clay forming</span></h1>
<div id="bodyContent"><div id="mw-content-text"><div class="mw-parser-output">
  <div class="toc">Contents 1 Basics 2 Recipes and other table of contents text</div>
  <table class="infobox"><tr><td>Infobox text that should never be indexed</td></tr></table>
  <p>Clay forming is the process of shaping clay into useful items on a flat surface.</p>
  <p>Short.</p>
  <h2>Basics<span class="mw-editsection">[edit]</span></h2>
  <p>Place clay on the ground and right-click with more clay to start forming.<sup class="reference">[1]</sup></p>
  <h3>Tools</h3>
  <ul><li>A stack of any clay type works fine</li><li>Free hands for shaping the layers</li></ul>
  <blockquote><p>Patience is the first rule of the potter's wheel.</p></blockquote>
  <script>var x = "script text must vanish";</script>
  <p><a href="/wiki/Pottery">Pottery</a> and <a href="/wiki/Kiln">kilns</a> come next in progression.</p>
</div></div></div>
<div id="catlinks"><a href="/index.php?title=Special:Categories">Categories</a>: <a href="/wiki/Category:Crafting">Crafting</a> <a href="/wiki/Category:Clay">Clay</a></div>
<div id="footer"><a href="/wiki/Special:About">About</a></div>
</body></html>`

func TestParsePage_Article(t *testing.T) {
	u, _ := url.Parse("https://wiki.example.org/index.php?title=Clay_forming")
	page, hrefs, err := ParsePage([]byte(articleHTML), u)
	require.NoError(t, err)

	assert.Equal(t, "Clay forming", page.Title)
	assert.Equal(t, u.String(), page.URL)
	assert.Equal(t, []string{"Crafting", "Clay"}, page.Categories)

	c := page.Content
	assert.True(t, strings.HasPrefix(c, "Clay forming is the process"))
	assert.Contains(t, c, "## Basics")
	assert.Contains(t, c, "### Tools")
	assert.Contains(t, c, "- A stack of any clay type works fine\n- Free hands for shaping the layers")
	assert.Contains(t, c, "Patience is the first rule")
	assert.Equal(t, 1, strings.Count(c, "Patience is the first rule"))
	assert.Contains(t, c, "Pottery and kilns come next in progression.")

	for _, gone := range []string{"[edit]", "[1]", "Infobox text", "table of contents", "script text", "Short."} {
		assert.NotContains(t, c, gone)
	}

	assert.Contains(t, hrefs, "/wiki/Pottery")
	assert.Contains(t, hrefs, "/wiki/Special:About")
}

func TestParsePage_TitleFallbackAndPlaceholder(t *testing.T) {
	u, _ := url.Parse("https://wiki.example.org/index.php?title=Empty_Page")
	raw := `<html><body><div id="mw-content-text"><div class="mw-parser-output"><p>tiny</p></div></div></body></html>`

	page, _, err := ParsePage([]byte(raw), u)
	require.NoError(t, err)

	assert.Equal(t, "Empty Page", page.Title)
	assert.Contains(t, page.Content, "No content could be extracted")
	assert.Contains(t, page.Content, u.String())
	assert.GreaterOrEqual(t, len(page.Content), 50)
}

func TestParsePage_BodyContentFallback(t *testing.T) {
	u, _ := url.Parse("https://wiki.example.org/index.php?title=Old")
	raw := `<html><body><h1 class="firstHeading">Old Skin</h1><div id="bodyContent"><p>Legacy skins render content straight into bodyContent.</p></div></body></html>`

	page, _, err := ParsePage([]byte(raw), u)
	require.NoError(t, err)
	assert.Equal(t, "Old Skin", page.Title)
	assert.Equal(t, "Legacy skins render content straight into bodyContent.", page.Content)
}

func TestParsePage_ReadabilityFallback(t *testing.T) {
	u, _ := url.Parse("https://wiki.example.org/index.php?title=Plain")
	para := strings.Repeat("Readable article text about smelting copper ore in a bloomery. ", 12)
	raw := `<html><head><title>Plain</title></head><body><article><h2>Smelting</h2><p>` + para + `</p><p>` + para + `</p></article></body></html>`

	page, _, err := ParsePage([]byte(raw), u)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "smelting copper ore")
}
