// Package registration creates game accounts: it drives the signup
// form in a browser and confirms the address through the mailbox's
// confirmation email.
package registration

import (
	"regexp"
	"sort"
	"strings"
)

var (
	hrefRe    = regexp.MustCompile(`href=["'](https?://[^"']+)["']`)
	bareURLRe = regexp.MustCompile(`https?://[^\s"'<>]+`)
	nobrRe    = regexp.MustCompile(`(?s)<nobr>(.*?)</nobr>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// shortLinkHost marks the visible confirmation URL that the sender
// splits across nobr elements.
const shortLinkHost = "eu.wargaming.net/registration/short"

// preferredHints order click-tracking and vendor links ahead of
// unrelated URLs when no direct registration link is present.
var preferredHints = []string{"tracking/click", "wargaming", "worldoftanks"}

// CandidateLinks extracts every URL from the email bodies, direct
// registration links first, deduplicated in preference order.
func CandidateLinks(bodies ...string) []string {
	var urls []string
	for _, body := range bodies {
		if strings.TrimSpace(body) == "" {
			continue
		}
		for _, m := range hrefRe.FindAllStringSubmatch(body, -1) {
			urls = append(urls, m[1])
		}
		urls = append(urls, joinedNobrLinks(body)...)
		urls = append(urls, bareURLRe.FindAllString(tagRe.ReplaceAllString(body, " "), -1)...)
	}

	var registration, other []string
	for _, u := range urls {
		u = strings.TrimRight(u, ".,;)")
		if strings.Contains(u, "/registration/") {
			registration = append(registration, u)
		} else {
			other = append(other, u)
		}
	}
	sort.SliceStable(other, func(i, j int) bool {
		pi, pj := hintRank(other[i]), hintRank(other[j])
		if pi != pj {
			return pi < pj
		}
		return len(other[i]) < len(other[j])
	})

	seen := make(map[string]bool)
	var out []string
	for _, u := range append(registration, other...) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

func hintRank(u string) int {
	for _, h := range preferredHints {
		if strings.Contains(u, h) {
			return 0
		}
	}
	return 1
}

// joinedNobrLinks reassembles the visible confirmation URL that the
// email splits across nobr runs.
func joinedNobrLinks(body string) []string {
	var out []string
	for _, m := range nobrRe.FindAllStringSubmatch(body, -1) {
		joined := spaceRe.ReplaceAllString(tagRe.ReplaceAllString(m[1], ""), "")
		if !strings.Contains(joined, shortLinkHost) {
			continue
		}
		joined = strings.Trim(joined, `"'`)
		if strings.HasPrefix(joined, "http") {
			out = append(out, joined)
		} else {
			out = append(out, "https://"+strings.TrimLeft(joined, "/"))
		}
	}
	return out
}

// ConfirmationLink returns the first registration link found in the
// bodies.
func ConfirmationLink(bodies ...string) (string, bool) {
	for _, u := range CandidateLinks(bodies...) {
		if strings.Contains(u, "/registration/") {
			return u, true
		}
	}
	return "", false
}
