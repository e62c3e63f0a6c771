package epub

import (
	"fmt"
	"path"
	"strings"
)

// Verify reopens an exported EPUB and reports problems that leave the
// archive readable but incomplete. Structural failures (mimetype,
// container.xml, unparsable OPF) are returned as the error.
func Verify(epubPath string) ([]string, error) {
	r, err := Open(epubPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := r.ReadFile(r.OPFPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read OPF: %w", err)
	}
	opf, err := ParseOPF(data, path.Dir(r.OPFPath()))
	if err != nil {
		return nil, err
	}

	var findings []string
	missing := make(map[string]bool)

	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if !r.Has(item.Href) {
			missing[item.Href] = true
			findings = append(findings, fmt.Sprintf("manifest item %q: %s not in archive", id, item.Href))
		}
	}

	for _, ref := range opf.Spine {
		item, ok := opf.Manifest[ref.IDRef]
		if !ok {
			findings = append(findings, fmt.Sprintf("spine item %q not in manifest", ref.IDRef))
			continue
		}
		if missing[item.Href] || !isXHTML(item.MediaType) {
			continue
		}

		doc, err := r.ReadFile(item.Href)
		if err != nil {
			findings = append(findings, fmt.Sprintf("%s: %v", item.Href, err))
			continue
		}
		content, err := LoadContent(item.ID, item.Href, doc)
		if err != nil {
			findings = append(findings, fmt.Sprintf("%s: %v", item.Href, err))
			continue
		}
		for _, ref := range append(content.CSSLinks, content.ImageRefs...) {
			if !r.Has(ref) {
				findings = append(findings, fmt.Sprintf("%s: referenced file %s not in archive", item.Href, ref))
			}
		}
	}

	return findings, nil
}

// isXHTML checks if a media type indicates an XHTML content file.
func isXHTML(mediaType string) bool {
	return strings.Contains(mediaType, "html")
}
