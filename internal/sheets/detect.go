package sheets

import (
	"net/url"
	"regexp"
	"strings"
)

var spreadsheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

var titleRe = regexp.MustCompile(`^(.+?)\s*-\s*Google Sheets$`)

// UntitledSpreadsheet is returned by SheetName for unrecognised titles.
const UntitledSpreadsheet = "Untitled Spreadsheet"

// Info describes a spreadsheet page.
type Info struct {
	SpreadsheetID string `json:"spreadsheetId,omitempty"`
	SheetName     string `json:"sheetName"`
	URL           string `json:"url"`
}

// ExtractSpreadsheetID returns the id embedded in a spreadsheet URL.
func ExtractSpreadsheetID(rawURL string) (string, bool) {
	m := spreadsheetIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsSheetsURL reports whether rawURL points at a Google Sheets document.
func IsSheetsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Hostname() == "docs.google.com" && strings.Contains(u.Path, "/spreadsheets/")
}

// SheetName extracts the document name from a browser tab title such as
// "Interview notes - Google Sheets".
func SheetName(title string) string {
	m := titleRe.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return UntitledSpreadsheet
	}
	return strings.TrimSpace(m[1])
}

// Detect combines the helpers above.
func Detect(rawURL, title string) Info {
	id, _ := ExtractSpreadsheetID(rawURL)
	return Info{SpreadsheetID: id, SheetName: SheetName(title), URL: rawURL}
}
