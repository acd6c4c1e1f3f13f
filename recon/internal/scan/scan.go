// Package scan applies rule sets to fetched documents.
package scan

import (
	"sort"
	"strings"

	"github.com/hazyhaar/recon/rules"
	"github.com/hazyhaar/recon/tracker"
)

// MatchSet holds the distinct matches found in one document, sorted.
// Primary covers the description or page body, Secondary every comment
// or attachment reference.
type MatchSet struct {
	Primary   []string `json:"primary,omitempty"`
	Secondary []string `json:"secondary,omitempty"`
}

// Empty reports whether neither field matched.
func (m MatchSet) Empty() bool {
	return len(m.Primary) == 0 && len(m.Secondary) == 0
}

// ScanResult maps document ID to its matches. Documents without any
// match are absent.
type ScanResult map[string]MatchSet

// IDs returns the document IDs in sorted order.
func (r ScanResult) IDs() []string {
	out := make([]string, 0, len(r))
	for id := range r {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Progress is called once per document handled, nil ones included.
type Progress func(done, total int)

func (p Progress) advance(done, total int) {
	if p != nil {
		p(done, total)
	}
}

// ScanAll runs rs over the primary text and each secondary text of every
// document.
func ScanAll(rs *rules.RuleSet, docs map[string]*tracker.Document) ScanResult {
	return ScanAllProgress(rs, docs, nil)
}

// ScanAllProgress is ScanAll reporting each document to progress.
func ScanAllProgress(rs *rules.RuleSet, docs map[string]*tracker.Document, progress Progress) ScanResult {
	out := make(ScanResult)
	done := 0
	for id, doc := range docs {
		done++
		if doc != nil {
			if m := ScanDocument(rs, doc); !m.Empty() {
				out[id] = m
			}
		}
		progress.advance(done, len(docs))
	}
	return out
}

// ScanDocument scans one document. Secondary texts are scanned one by one
// so a match never spans two comments.
func ScanDocument(rs *rules.RuleSet, doc *tracker.Document) MatchSet {
	m := MatchSet{Primary: rs.Scan(doc.PrimaryText)}
	secondary := make(map[string]struct{})
	for _, text := range doc.SecondaryTexts {
		rs.Collect(text, secondary)
	}
	if len(secondary) > 0 {
		m.Secondary = make([]string, 0, len(secondary))
		for s := range secondary {
			m.Secondary = append(m.Secondary, s)
		}
		sort.Strings(m.Secondary)
	}
	return m
}

// ExtractionResult lists the distinct URLs and IPv4 addresses found
// across documents, sorted.
type ExtractionResult struct {
	URLs []string `json:"urls"`
	IPs  []string `json:"ips"`
}

// Extractor pulls URLs and IPv4 addresses out of documents.
type Extractor struct {
	rs *rules.RuleSet
}

// NewExtractor builds an Extractor over rules.Extractor.
func NewExtractor() *Extractor {
	return &Extractor{rs: rules.Extractor()}
}

// ExtractAll scans the primary and secondary texts of every document,
// joined by spaces, and unions the results.
func (e *Extractor) ExtractAll(docs map[string]*tracker.Document) ExtractionResult {
	return e.ExtractAllProgress(docs, nil)
}

// ExtractAllProgress is ExtractAll reporting each document to progress.
func (e *Extractor) ExtractAllProgress(docs map[string]*tracker.Document, progress Progress) ExtractionResult {
	urls := make(map[string]struct{})
	ips := make(map[string]struct{})
	done := 0
	for _, doc := range docs {
		done++
		if doc != nil {
			e.collect(doc, urls, ips)
		}
		progress.advance(done, len(docs))
	}
	return ExtractionResult{URLs: sorted(urls), IPs: sorted(ips)}
}

func (e *Extractor) collect(doc *tracker.Document, urls, ips map[string]struct{}) {
	text := doc.PrimaryText
	if len(doc.SecondaryTexts) > 0 {
		text += " " + strings.Join(doc.SecondaryTexts, " ")
	}
	byRule := e.rs.ScanByRule(text)
	for _, u := range byRule[rules.URLRule] {
		urls[u] = struct{}{}
	}
	for _, ip := range byRule[rules.IPv4Rule] {
		ips[ip] = struct{}{}
	}
}

// ExtractAll is NewExtractor().ExtractAll(docs).
func ExtractAll(docs map[string]*tracker.Document) ExtractionResult {
	return NewExtractor().ExtractAll(docs)
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
