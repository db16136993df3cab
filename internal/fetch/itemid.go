package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var (
	reNo        = regexp.MustCompile(`[?&]no=(\d+)`)
	reLogNo     = regexp.MustCompile(`[?&]logNo=(\d+)`)
	reArticleID = regexp.MustCompile(`(?i)[?&]articleid=(\d+)`)
	reOidAid    = regexp.MustCompile(`[?&]oid=(\d+)&aid=(\d+)`)
	reNewsPath  = regexp.MustCompile(`/article/(\d+)/(\d+)`)
	reBlogPath  = regexp.MustCompile(`blog\.naver\.com/[^/?#]+/(\d+)`)
)

// ItemID derives a stable id from a link: a configured pattern first, then
// the known numeric id shapes, then a truncated sha256 of the link.
func ItemID(link string, pattern *regexp.Regexp) string {
	if link == "" {
		return ""
	}
	if pattern != nil {
		if m := pattern.FindStringSubmatch(link); m != nil {
			if len(m) > 1 && m[1] != "" {
				return m[1]
			}
			return m[0]
		}
	}
	for _, re := range []*regexp.Regexp{reNo, reLogNo, reArticleID, reBlogPath} {
		if m := re.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	for _, re := range []*regexp.Regexp{reOidAid, reNewsPath} {
		if m := re.FindStringSubmatch(link); m != nil {
			return m[1] + "_" + m[2]
		}
	}
	return HashID(link)
}

// HashID is the first 20 hex chars of sha256(s).
func HashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:20]
}
