package webfetch

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"
)

const (
	maxHeadingsScanned = 10
	maxFeatures        = 5
	minParagraphLen    = 40
)

var (
	titleSuffixes   = []string{" - Home", " | Home", " - Official", " | Official"}
	featureSkipList = []string{"contact", "about us", "footer", "menu", "navigation"}

	mdImageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Facts is what could be learned from one page.
type Facts struct {
	CompanyName string
	Description string
	Features    []string
}

// Extract parses page HTML. It never fails: unparseable input yields the
// domain-derived company name and nothing else.
func Extract(pageURL string, body []byte) Facts {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Facts{CompanyName: nameFromDomain(pageURL)}
	}

	// features first: the description fallback prunes page chrome from doc
	feats := features(doc)
	return Facts{
		CompanyName: companyName(doc, pageURL),
		Description: description(doc),
		Features:    feats,
	}
}

func companyName(doc *html.Node, pageURL string) string {
	title := ""
	if n := findFirst(doc, func(n *html.Node) bool { return n.Data == "title" }); n != nil {
		title = strings.TrimSpace(textOf(n))
	}
	if title == "" {
		return nameFromDomain(pageURL)
	}
	for _, suffix := range titleSuffixes {
		title = strings.TrimSuffix(title, suffix)
	}
	title = strings.Split(title, "|")[0]
	title = strings.Split(title, "-")[0]
	return strings.TrimSpace(title)
}

func nameFromDomain(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.Replace(u.Hostname(), "www.", "", 1)
	label := strings.Split(host, ".")[0]
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + strings.ToLower(label[1:])
}

func description(doc *html.Node) string {
	if d := metaContent(doc, "name", "description"); d != "" {
		return d
	}
	if d := metaContent(doc, "property", "og:description"); d != "" {
		return d
	}
	return firstParagraph(doc)
}

func metaContent(doc *html.Node, attrKey, attrVal string) string {
	n := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "meta" && strings.EqualFold(attr(n, attrKey), attrVal) && strings.TrimSpace(attr(n, "content")) != ""
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

// firstParagraph converts the main content to markdown and returns the
// first prose block long enough to read as a description.
func firstParagraph(doc *html.Node) string {
	root := findFirst(doc, func(n *html.Node) bool { return n.Data == "main" || n.Data == "article" })
	if root == nil {
		root = findFirst(doc, func(n *html.Node) bool { return n.Data == "body" })
	}
	if root == nil {
		return ""
	}
	removeElements(root, "nav", "header", "footer", "aside", "script", "style", "noscript", "form")

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return ""
	}
	markdown, err := md.NewConverter("", true, nil).ConvertString(buf.String())
	if err != nil {
		return ""
	}

	for _, block := range strings.Split(markdown, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, "#") || strings.HasPrefix(block, "-") ||
			strings.HasPrefix(block, "*") || strings.HasPrefix(block, ">") || strings.HasPrefix(block, "|") {
			continue
		}
		block = mdImageRe.ReplaceAllString(block, "")
		block = mdLinkRe.ReplaceAllString(block, "$1")
		block = strings.TrimSpace(spaceRe.ReplaceAllString(block, " "))
		if len(block) >= minParagraphLen {
			return block
		}
	}
	return ""
}

func features(doc *html.Node) []string {
	var headings []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(headings) >= maxHeadingsScanned {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "h2" || n.Data == "h3") {
			headings = append(headings, strings.TrimSpace(spaceRe.ReplaceAllString(textOf(n), " ")))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out := make([]string, 0, maxFeatures)
	for _, text := range headings {
		if len(text) <= 5 || len(text) >= 100 || skipHeading(text) {
			continue
		}
		out = append(out, text)
		if len(out) == maxFeatures {
			break
		}
	}
	return out
}

func skipHeading(text string) bool {
	lower := strings.ToLower(text)
	for _, skip := range featureSkipList {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func removeElements(n *html.Node, tags ...string) {
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}
	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}
