package epub

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Content represents a parsed XHTML content file
type Content struct {
	ID        string   // Manifest ID
	Path      string   // File path
	CSSLinks  []string // Referenced CSS file paths
	ImageRefs []string // Referenced image paths
}

// LoadContent loads and parses an XHTML content file
// id: manifest item ID
// path: file path within EPUB (used for relative path resolution)
// content: XHTML file content
func LoadContent(id, filePath string, content []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	c := &Content{
		ID:        id,
		Path:      filePath,
		CSSLinks:  []string{},
		ImageRefs: []string{},
	}

	baseDir := path.Dir(filePath)

	doc.Find("link[rel='stylesheet']").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists && isLocalRef(href) {
			c.CSSLinks = append(c.CSSLinks, resolvePath(baseDir, href))
		}
	})

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists && isLocalRef(src) {
			c.ImageRefs = append(c.ImageRefs, resolvePath(baseDir, src))
		}
	})

	return c, nil
}

// isLocalRef reports whether ref points inside the archive.
func isLocalRef(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// resolvePath resolves a relative path against a base directory
// baseDir: base directory (e.g., "text" for "text/chapter1.xhtml")
// relPath: relative path (e.g., "../images/photo.jpg")
// returns: resolved path (e.g., "images/photo.jpg")
func resolvePath(baseDir, relPath string) string {
	return joinPath(baseDir, relPath)
}
