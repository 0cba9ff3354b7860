package mircrew

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minDescriptionLength skips short boilerplate lines when picking a description
const minDescriptionLength = 50

var (
	topicHrefPattern  = regexp.MustCompile(`(?:^|/)viewtopic\.php\?(?:[^#]*&)?t=(\d+)(?:[&#]|$)`)
	siteSuffixPattern = regexp.MustCompile(`(?i)\s*[-|]\s*MirCrew.*$`)
	bylineDatePattern = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
	magnetTextPattern = regexp.MustCompile(`magnet:\?[^\s"'<>]+`)
)

// trailingPunctuation closes the sentence around a magnet written as text
const trailingPunctuation = ").,;:!?]"

// Labels recognised in a post body, Italian and English variants.
const fieldLabels = `Anno|Year|Genere|Genre|Qualità|Qualita|Quality|Dimensione|Size`

var (
	yearPattern    = regexp.MustCompile(`(?i)\b(?:Anno|Year)\s*:\s*(\d{4})`)
	genrePattern   = labeledValue(`Genere|Genre`)
	qualityPattern = labeledValue(`Qualità|Qualita|Quality`)
	sizePattern    = labeledValue(`Dimensione|Size`)
)

// labeledValue matches "<label>: value" where value runs to the end of the
// line or to the next recognised label on the same line.
func labeledValue(labels string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + labels + `)\s*:\s*([^\n]+?)\s*(?:\b(?:` + fieldLabels + `)\s*:|\n|$)`)
}

var notFoundMarkers = []string{
	"the requested topic does not exist",
	"l'argomento richiesto non esiste",
	"l’argomento richiesto non esiste",
	"topic does not exist",
}

// hasNotFoundMarker reports whether body is the forum's "no such topic" page
func hasNotFoundMarker(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func parseDocument(body string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, wrapError(KindParsing, err, "invalid HTML")
	}
	return doc, nil
}

// ParseSearchResults extracts the topics linked from a search results page.
// Results keep page order and are unique by topic id. A page without topic
// links yields an empty slice.
func ParseSearchResults(body, baseURL string) ([]SearchResult, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, wrapError(KindParsing, err, "invalid base URL")
	}

	results := make([]SearchResult, 0)
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		match := topicHrefPattern.FindStringSubmatch(href)
		if match == nil {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if resolved := base.ResolveReference(ref); resolved.Host != base.Host {
			return
		}

		id := match[1]
		title := collapseSpace(s.Text())
		if title == "" || seen[id] {
			return
		}
		seen[id] = true

		results = append(results, SearchResult{
			ID:    id,
			Title: title,
			URL:   topicURL(baseURL, id),
		})
	})

	return results, nil
}

// ParseMovieDetails extracts a topic's metadata from its first post. It fails
// with a parsing error only when no title can be found at all.
func ParseMovieDetails(body, movieID, baseURL string) (*MovieDetails, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	title := extractTitle(doc)
	if title == "" {
		return nil, newError(KindParsing, "no topic title found on page")
	}

	content := firstPostContent(doc)
	raw := blockText(content)
	if content.Length() == 0 {
		raw = blockText(doc.Find("body"))
	}

	details := &MovieDetails{
		ID:         movieID,
		Title:      title,
		URL:        topicURL(baseURL, movieID),
		Year:       findField(yearPattern, raw),
		Genre:      findField(genrePattern, raw),
		Quality:    findField(qualityPattern, raw),
		Size:       findField(sizePattern, raw),
		RawContent: raw,
	}

	if author := doc.Find("p.author").First(); author.Length() > 0 {
		details.PostedBy = stringPtr(collapseSpace(author.Find("a.username, a.username-coloured").First().Text()))
		details.PostedDate = bylineDate(author)
	}

	details.Description = findDescription(content, raw)

	return details, nil
}

// ParseMagnetLink returns the first valid magnet URI on the page. Anchors are
// preferred over plain text; a candidate without an xt=urn:btih: parameter is
// rejected.
func ParseMagnetLink(body string) (string, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return "", err
	}

	var candidates []string
	doc.Find(`a[href^="magnet:?"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		candidates = append(candidates, href)
	})
	for _, match := range magnetTextPattern.FindAllString(blockText(doc.Selection), -1) {
		candidates = append(candidates, strings.TrimRight(match, trailingPunctuation))
	}
	doc.Find(`a[href*="magnet"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if unescaped, err := url.QueryUnescape(href); err == nil {
			href = unescaped
		}
		candidates = append(candidates, magnetTextPattern.FindAllString(href, -1)...)
	})

	if len(candidates) == 0 {
		return "", newError(KindParsing, "no magnet link on page")
	}

	var firstErr error
	for _, candidate := range candidates {
		link, err := ParseMagnet(candidate)
		if err == nil {
			return link.URI, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", wrapError(KindParsing, firstErr, "no valid magnet link on page")
}

type loginForm struct {
	action       string
	formToken    string
	creationTime string
}

// parseLoginForm extracts the anti-forgery values of the login form
func parseLoginForm(body string) (*loginForm, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	scope := doc.Selection
	form := doc.Find(`form[action*="mode=login"]`).First()
	if form.Length() > 0 {
		scope = form
	}

	lf := &loginForm{action: "ucp.php?mode=login"}
	if action, ok := form.Attr("action"); ok && strings.TrimSpace(action) != "" {
		lf.action = strings.TrimSpace(action)
	}
	lf.formToken = inputValue(scope, "form_token")
	lf.creationTime = inputValue(scope, "creation_time")

	// tokens may live outside the form element on some templates
	if lf.formToken == "" {
		lf.formToken = inputValue(doc.Selection, "form_token")
	}
	if lf.creationTime == "" {
		lf.creationTime = inputValue(doc.Selection, "creation_time")
	}

	var missing []string
	if lf.formToken == "" {
		missing = append(missing, "form_token")
	}
	if lf.creationTime == "" {
		missing = append(missing, "creation_time")
	}
	if len(missing) > 0 {
		return nil, newError(KindParsing, "login page is missing %s; the site structure may have changed", strings.Join(missing, " and "))
	}

	return lf, nil
}

// loginRejection returns the error shown by a login form that refused the
// submitted credentials, or "" if the page is not such a form.
func loginRejection(doc *goquery.Document) string {
	form := doc.Find(`form[action*="mode=login"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(`input[name="password"]`).Length() > 0
	})
	if form.Length() == 0 {
		return ""
	}
	return collapseSpace(form.Find(".error").First().Text())
}

// isAnonymousPage reports whether the page was served to a logged-out visitor
func isAnonymousPage(doc *goquery.Document) bool {
	if doc.Find(`a[href*="mode=logout"]`).Length() > 0 {
		return false
	}
	return doc.Find(`form[action*="mode=login"] input[type="password"], form[action*="mode=login"] input[name="password"]`).Length() > 0
}

func inputValue(scope *goquery.Selection, name string) string {
	value, _ := scope.Find(`input[name="` + name + `"]`).First().Attr("value")
	return strings.TrimSpace(value)
}

func extractTitle(doc *goquery.Document) string {
	if h2 := doc.Find("h2.topic-title").First(); h2.Length() > 0 {
		if link := h2.Find("a").First(); link.Length() > 0 {
			if title := collapseSpace(link.Text()); title != "" {
				return title
			}
		}
		if title := collapseSpace(h2.Text()); title != "" {
			return title
		}
	}

	title := collapseSpace(doc.Find("title").First().Text())
	return strings.TrimSpace(siteSuffixPattern.ReplaceAllString(title, ""))
}

func firstPostContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"div.postbody div.content", "div.content", "div.postbody"} {
		if content := doc.Find(selector).First(); content.Length() > 0 {
			return content
		}
	}
	return doc.Find("div.content")
}

func findField(pattern *regexp.Regexp, text string) *string {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	return stringPtr(collapseSpace(match[1]))
}

func bylineDate(author *goquery.Selection) *string {
	if t := collapseSpace(author.Find("time").First().Text()); t != "" {
		return &t
	}
	return stringPtr(bylineDatePattern.FindString(author.Text()))
}

func findDescription(content *goquery.Selection, raw string) *string {
	var description string
	content.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := collapseSpace(p.Text())
		if utf8.RuneCountInString(text) > minDescriptionLength {
			description = text
			return false
		}
		return true
	})
	if description != "" {
		return &description
	}

	for _, line := range strings.Split(raw, "\n") {
		if utf8.RuneCountInString(line) > minDescriptionLength {
			return &line
		}
	}
	return nil
}

func topicURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/viewtopic.php?t=" + id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.Tr: true, atom.Table: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Dd: true, atom.Dt: true, atom.Dl: true, atom.Hr: true,
}

// blockText renders the text of sel with one line per <br> or block element.
// Whitespace inside a line is collapsed and empty lines are dropped.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = collapseSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		case atom.Br:
			b.WriteByte('\n')
			return
		}
	case html.DocumentNode:
	default:
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}
