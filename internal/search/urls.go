// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"net/url"
	"strings"
)

// blockedDomains are never accepted as results: search engines, their
// asset hosts and social sites that do not serve documents.
var blockedDomains = []string{
	"google.", "gstatic.com", "googleusercontent.com",
	"bing.com", "microsoft.com", "live.com", "msn.com",
	"duckduckgo.com",
	"baidu.com", "baidu.cn", "bdstatic.com",
	"facebook.com", "youtube.com", "twitter.com", "x.com",
	"weibo.com", "zhihu.com", "douban.com",
}

// ValidResultURL reports whether raw is an absolute http(s) URL of at least
// ten characters that does not point at a search engine or social site.
func ValidResultURL(raw string) bool {
	if len(raw) < 10 {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	return !hostMatches(u.Hostname(), blockedDomains)
}

// hostMatches reports whether host equals or falls under any of domains.
// Entries ending in "." match any top-level domain.
func hostMatches(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		if strings.HasSuffix(d, ".") {
			if strings.HasPrefix(host, d) || strings.Contains(host, "."+d) {
				return true
			}
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// cleanResultURL resolves href against base and unwraps engine redirect
// links (/url?q=, uddg=, /link?url=). It returns "" for hrefs that cannot
// be resolved or that are javascript: or fragment links.
func cleanResultURL(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		b, err := url.Parse(base)
		if err != nil {
			return ""
		}
		u = b.ResolveReference(u)
	}

	q := u.Query()
	var target string
	switch {
	case strings.HasSuffix(u.Path, "/url"):
		target = q.Get("q")
		if target == "" {
			target = q.Get("url")
		}
	case q.Get("uddg") != "":
		target = q.Get("uddg")
	case strings.HasSuffix(u.Path, "/link"):
		target = q.Get("url")
	}
	if t := unwrap(target); t != "" {
		return t
	}
	return u.String()
}

// unwrap returns target when it is itself an absolute http(s) URL.
func unwrap(target string) string {
	if dec, err := url.QueryUnescape(target); err == nil && strings.HasPrefix(dec, "http") {
		target = dec
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return ""
}
