package archive

// Page is one archived snapshot. Immutable once written; content_hash is a
// pure function of SanitizedHTML and is advisory metadata only — two captures
// of an unchanged page keep distinct rows.
type Page struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	CapturedAt    int64  `json:"captured_at"` // unix milliseconds
	Snippet       string `json:"snippet"`
	SanitizedHTML string `json:"sanitized_html"`
	ContentHash   string `json:"content_hash"`
}

// PageSummary is the listing shape: everything but the HTML body, so the
// recovery view stays cheap to refresh.
type PageSummary struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	CapturedAt int64  `json:"captured_at"`
	Snippet    string `json:"snippet"`
}

// Resource is one embedded binary asset, stored once per distinct byte
// sequence. RefCount tracks live page links; zero-ref rows wait for the
// sweeper.
type Resource struct {
	Hash     string `json:"hash"`
	MimeType string `json:"mime_type"`
	Bytes    []byte `json:"-"`
	RefCount int64  `json:"ref_count"`
}

// Stats aggregates store counts for status surfaces.
type Stats struct {
	Pages         int `json:"pages"`
	Resources     int `json:"resources"`
	ResourceLinks int `json:"resource_links"`
	ZeroRef       int `json:"zero_ref"`
}
