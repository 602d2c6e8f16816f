package settings

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/valpere/sheetmentor/internal/apperr"
)

func openStores(t *testing.T) map[string]*Store {
	t.Helper()
	disk, err := Open(filepath.Join(t.TempDir(), "nested", "settings.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { disk.Close() })

	mem, err := Open("")
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	return map[string]*Store{"bolt": disk, "memory": mem}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get("missing"); ok || err != nil {
				t.Errorf("expected missing key, got ok=%v err=%v", ok, err)
			}

			if err := s.Set("spreadsheetId", "abc"); err != nil {
				t.Fatal(err)
			}
			v, ok, err := s.Get("spreadsheetId")
			if err != nil || !ok || v != "abc" {
				t.Errorf("Get = %q, %v, %v", v, ok, err)
			}

			if err := s.Delete("spreadsheetId"); err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := s.Get("spreadsheetId"); ok {
				t.Error("expected key to be deleted")
			}
			if err := s.Delete("never-set"); err != nil {
				t.Errorf("deleting a missing key should succeed, got %v", err)
			}
		})
	}
}

func TestStore_SetRequiresKey(t *testing.T) {
	s, _ := Open("")
	if err := s.Set("", "x"); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStore_Keys(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Set("b", "2")
			s.Set("a", "1")
			keys, err := s.Keys()
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(keys, []string{"a", "b"}) {
				t.Errorf("unexpected keys %v", keys)
			}
		})
	}
}

func TestStore_TypedDefaults(t *testing.T) {
	s, _ := Open("")

	es, err := s.ExtensionSettings()
	if err != nil {
		t.Fatal(err)
	}
	if es != DefaultExtensionSettings() || !es.AutoGenerate || es.ReportFormat != "markdown" || es.MaxReportLength != 5000 {
		t.Errorf("unexpected default settings %+v", es)
	}

	prefs, err := s.UserPreferences()
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Theme != "auto" || prefs.Language != "ko" {
		t.Errorf("unexpected default preferences %+v", prefs)
	}
}

func TestStore_TypedRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SetUserPreferences(UserPreferences{Theme: "dark", Language: "en"}); err != nil {
				t.Fatal(err)
			}
			prefs, _ := s.UserPreferences()
			if prefs.Theme != "dark" || prefs.Language != "en" {
				t.Errorf("unexpected preferences %+v", prefs)
			}

			if err := s.SetAPIKey("AIza-test"); err != nil {
				t.Fatal(err)
			}
			if key, _ := s.APIKey(); key != "AIza-test" {
				t.Errorf("unexpected api key %q", key)
			}

			s.SetSpreadsheetID("sheet-1")
			if id, _ := s.SpreadsheetID(); id != "sheet-1" {
				t.Errorf("unexpected spreadsheet id %q", id)
			}
		})
	}
}

func TestStore_PartialJSONKeepsDefaults(t *testing.T) {
	s, _ := Open("")
	s.Set(KeyExtensionSettings, `{"maxReportLength": 100}`)

	es, err := s.ExtensionSettings()
	if err != nil {
		t.Fatal(err)
	}
	if es.MaxReportLength != 100 || !es.AutoGenerate || es.ReportFormat != "markdown" {
		t.Errorf("unexpected merge %+v", es)
	}
}

func TestStore_InvalidJSON(t *testing.T) {
	s, _ := Open("")
	s.Set(KeyUserPreferences, "not json")

	if _, err := s.UserPreferences(); apperr.KindOf(err) != apperr.KindStorage {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.SetAPIKey("persisted")
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if key, _ := s.APIKey(); key != "persisted" {
		t.Errorf("expected persisted key, got %q", key)
	}
}
