package planner

import (
	"net/url"
	"sort"
	"strings"

	"github.com/probelab/deepresearch/internal/research"
)

// Link suffixes and hosts that rarely carry article content. Asset files
// would fail the content-type filter anyway; skipping them here saves the
// request.
var (
	skipSuffixes = []string{".pdf", ".doc", ".jpg", ".jpeg", ".png", ".gif"}
	skipHosts    = []string{"facebook.com", "twitter.com", "linkedin.com"}
)

type candidate struct {
	link      research.Outlink
	crossHost bool
	termMatch bool
	index     int
}

// level2Candidates filters and orders a Level-1 page's outlinks for Level-2
// following. Preference order: cross-host links first, then links whose
// anchor text or path mentions a query term, then original document order.
// The caller applies the visited set and the per-parent cap.
func level2Candidates(q research.Query, page research.Page) []research.Outlink {
	parentDomain := research.RegistrableDomain(page.URL)

	var cands []candidate
	for i, link := range page.Outlinks {
		if link.URL == page.URL {
			continue
		}
		if skipLink(link.URL) {
			continue
		}
		cands = append(cands, candidate{
			link:      link,
			crossHost: research.RegistrableDomain(link.URL) != parentDomain,
			termMatch: linkMentionsTerm(q, link),
			index:     i,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.crossHost != b.crossHost {
			return a.crossHost
		}
		if a.termMatch != b.termMatch {
			return a.termMatch
		}
		return a.index < b.index
	})

	out := make([]research.Outlink, len(cands))
	for i, c := range cands {
		out[i] = c.link
	}
	return out
}

func skipLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := strings.ToLower(u.Path)
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	host := strings.ToLower(u.Hostname())
	for _, blocked := range skipHosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

func linkMentionsTerm(q research.Query, link research.Outlink) bool {
	anchor := strings.ToLower(link.Anchor)
	path := ""
	if u, err := url.Parse(link.URL); err == nil {
		path = strings.ToLower(u.Path)
	}
	for _, term := range q.Terms {
		if strings.Contains(anchor, term) || strings.Contains(path, term) {
			return true
		}
	}
	return false
}
