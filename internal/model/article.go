package model

// Article is an immutable fetched rustcc.cn daily post. Identity is Date —
// the cache keys by Date, not Href.
type Article struct {
	Href        string // site-relative path, begins with "/"
	Title       string
	Author      string
	PublishTime string // untyped timestamp, as scraped
	Date        Date
	ContentHTML string // UTF-8 HTML fragment
}
