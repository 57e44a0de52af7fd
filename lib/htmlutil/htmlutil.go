package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// TrimText returns the text of the whole selection with surrounding whitespace removed.
func TrimText(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

// CleanText is TrimText that also collapses inner runs of whitespace into one space.
func CleanText(sel *goquery.Selection) string {
	text := removeNonPrintable(sel.Text())
	text = strings.TrimSpace(text)
	return innerWhitespace.ReplaceAllString(text, " ")
}

// SplitByBreaks returns the text of the first node of the selection, split
// at every <br> element. Segments are not trimmed.
func SplitByBreaks(sel *goquery.Selection) []string {
	if sel.Length() == 0 {
		return nil
	}

	segments := []string{}
	var current bytes.Buffer
	for child := sel.Get(0).FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.DataAtom == atom.Br {
			segments = append(segments, current.String())
			current.Reset()
			continue
		}
		getTextRecursive(child, &current)
	}
	return append(segments, current.String())
}

// LastSegment returns the trimmed text following the last <br> of the first
// node of the selection.
func LastSegment(sel *goquery.Selection) string {
	segments := SplitByBreaks(sel)
	if len(segments) == 0 {
		return ""
	}
	return strings.TrimSpace(segments[len(segments)-1])
}
