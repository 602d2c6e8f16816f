package sheets

import "testing"

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		url    string
		id     string
		wantOK bool
	}{
		{"https://docs.google.com/spreadsheets/d/1AbC-d_EF/edit#gid=0", "1AbC-d_EF", true},
		{"https://docs.google.com/spreadsheets/d/xyz", "xyz", true},
		{"https://docs.google.com/document/d/abc/edit", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		id, ok := ExtractSpreadsheetID(tt.url)
		if id != tt.id || ok != tt.wantOK {
			t.Errorf("ExtractSpreadsheetID(%q) = %q, %v; want %q, %v", tt.url, id, ok, tt.id, tt.wantOK)
		}
	}
}

func TestIsSheetsURL(t *testing.T) {
	tests := map[string]bool{
		"https://docs.google.com/spreadsheets/d/abc/edit": true,
		"https://docs.google.com/document/d/abc":          false,
		"https://example.com/spreadsheets/d/abc":          false,
		"::not a url":                                     false,
	}
	for in, want := range tests {
		if got := IsSheetsURL(in); got != want {
			t.Errorf("IsSheetsURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSheetName(t *testing.T) {
	tests := map[string]string{
		"모의 면접 기록 - Google Sheets": "모의 면접 기록",
		"Notes-Google Sheets":        "Notes",
		"Google Docs":                UntitledSpreadsheet,
		"":                           UntitledSpreadsheet,
	}
	for in, want := range tests {
		if got := SheetName(in); got != want {
			t.Errorf("SheetName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetect(t *testing.T) {
	info := Detect("https://docs.google.com/spreadsheets/d/abc/edit", "Q&A - Google Sheets")
	if info.SpreadsheetID != "abc" || info.SheetName != "Q&A" {
		t.Errorf("unexpected info %+v", info)
	}
}
