package classify

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func directoryHTML(n int) string {
	var b strings.Builder
	b.WriteString("<html><body><h2>Department</h2><ul>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<li><a href="/people/person-%d">Person %d</a></li>`, i, i)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func TestIsDirectoryLikePage_ManyProfileLinks(t *testing.T) {
	html := directoryHTML(10)
	assert.True(t, IsDirectoryLikePage("Department", html, "https://test.edu/people"))
}

func TestIsDirectoryLikePage_Indicator(t *testing.T) {
	html := `<html><body><h1>Jane Doe</h1></body></html>`
	assert.True(t, IsDirectoryLikePage("Welcome to the staff directory of the school", html, "https://test.edu/x"))
}

func TestIsDirectoryLikePage_ProfileHeading(t *testing.T) {
	html := `<html><body><h1>John A. Smith</h1><h2>Biography</h2><h2>Research interests</h2><h2>Publications</h2></body></html>`
	text := "John A. Smith Biography Research interests Publications"
	assert.False(t, IsDirectoryLikePage(text, html, "https://test.edu/people/john-smith"))
}

func TestIsDirectoryLikePage_SectionsBeatWeakLinks(t *testing.T) {
	// six profile links would trip the fallback, but the page has profile sections
	html := strings.Replace(directoryHTML(6), "<h2>Department</h2>", "", 1)
	text := "Biography ... Publications ..."
	assert.False(t, IsDirectoryLikePage(text, html, "https://test.edu/people/jane"))
}

func TestIsDirectoryLikePage_OGTitle(t *testing.T) {
	html := `<html><head><meta property="og:title" content="jane doe"></head><body>` +
		strings.TrimPrefix(directoryHTML(6), "<html><body>")
	assert.False(t, IsDirectoryLikePage("", html, "https://test.edu/people/jane"))
}

func TestIsDirectoryLikePage_ConservativeFallback(t *testing.T) {
	assert.True(t, IsDirectoryLikePage("", directoryHTML(5), "https://test.edu/dept"))
	assert.False(t, IsDirectoryLikePage("", directoryHTML(4), "https://test.edu/dept"))
}

func TestIsDirectoryLikePage_HeadingWithDirectoryTerm(t *testing.T) {
	html := `<html><body><h1>Academic Staff List</h1>` + strings.TrimPrefix(directoryHTML(5), "<html><body>")
	assert.True(t, IsDirectoryLikePage("", html, "https://test.edu/dept"))
}

func TestExtractProfileURLs(t *testing.T) {
	html := `<html><body>
<a href="/people/jane-doe">Jane</a>
<a href="/people/jane-doe#bio">Jane again</a>
<a href="https://profiles.test.edu/john">John</a>
<a href="https://other.edu/people/eve">Eve</a>
<a href="/news/2024/award">News</a>
<a href="mailto:x@test.edu">mail</a>
<a href="/people/">All people</a>
</body></html>`

	urls := ExtractProfileURLs(html, "https://test.edu/people")
	assert.Equal(t, []string{
		"https://test.edu/people/jane-doe",
		"https://profiles.test.edu/john",
	}, urls)
}

func TestExtractProfileURLs_BadBase(t *testing.T) {
	assert.Empty(t, ExtractProfileURLs(`<a href="/people/x">x</a>`, "://bad"))
}

func TestFindPaginationLinks(t *testing.T) {
	html := `<html><body>
<ul class="pagination"><li><a href="?page=1">1</a></li><li><a href="?page=2">2</a></li></ul>
<a rel="next" href="/people?page=2">Next</a>
<a class="page-link" href="https://other.edu/people?page=3">3</a>
<div class="pager"><a href="/people?page=4">4</a></div>
</body></html>`

	links := FindPaginationLinks(html, "https://test.edu/people")
	assert.Equal(t, []string{
		"https://test.edu/people?page=1",
		"https://test.edu/people?page=2",
		"https://test.edu/people?page=4",
	}, links)
}
