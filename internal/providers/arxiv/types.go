package arxiv

import "encoding/xml"

// feed is the root element of the arXiv Atom API response.
type feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []entry  `xml:"entry"`
}

type entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Authors    []author   `xml:"author"`
	Categories []category `xml:"category"`
	Links      []link     `xml:"link"`
	Journal    string     `xml:"journal_ref"`
	DOI        string     `xml:"doi"`
}

type author struct {
	Name string `xml:"name"`
}

type category struct {
	Term string `xml:"term,attr"`
}

type link struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}
