package refiner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/valpere/sheetmentor/internal/generator"
	"github.com/valpere/sheetmentor/internal/prompt"
	"github.com/valpere/sheetmentor/internal/sheets"
)

type mockSheets struct {
	readFunc   func(ctx context.Context, id, rng string) (*sheets.RangeData, error)
	updateFunc func(ctx context.Context, id, rng string, values [][]string) (*sheets.UpdateResult, error)
}

func (m *mockSheets) ReadRange(ctx context.Context, id, rng string) (*sheets.RangeData, error) {
	return m.readFunc(ctx, id, rng)
}

func (m *mockSheets) UpdateRange(ctx context.Context, id, rng string, values [][]string) (*sheets.UpdateResult, error) {
	if m.updateFunc == nil {
		return &sheets.UpdateResult{}, nil
	}
	return m.updateFunc(ctx, id, rng, values)
}

func (m *mockSheets) Metadata(ctx context.Context, id string) (*sheets.Metadata, error) {
	return &sheets.Metadata{SpreadsheetID: id}, nil
}

type mockGenerator struct {
	generateFunc func(ctx context.Context, p string) (*generator.Result, error)
	prompts      []string
}

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Model() string { return "mock-model" }

func (m *mockGenerator) Generate(ctx context.Context, p string) (*generator.Result, error) {
	m.prompts = append(m.prompts, p)
	return m.generateFunc(ctx, p)
}

// echoGenerator refines text by prefixing the part after the separator.
func echoGenerator() *mockGenerator {
	return &mockGenerator{generateFunc: func(_ context.Context, p string) (*generator.Result, error) {
		_, text, _ := strings.Cut(p, "\n\n---\n\n")
		return &generator.Result{Text: "정제:" + text}, nil
	}}
}

func rows(values ...[]string) *mockSheets {
	return &mockSheets{readFunc: func(context.Context, string, string) (*sheets.RangeData, error) {
		return &sheets.RangeData{Values: values}, nil
	}}
}

func newRefiner(gen generator.Generator, svc sheets.Service) *Refiner {
	return New(gen, svc, Config{Language: "ko"}, zerolog.Nop())
}

var testOpts = Options{SpreadsheetID: "sheet", SourceRange: "Sheet1!A:B", TargetRange: "Sheet1!B:B"}

func TestExtractAnswers(t *testing.T) {
	svc := rows([]string{"답변1", "정제된답변1"}, []string{"답변2", ""}, []string{"답변3"}, []string{})
	r := newRefiner(echoGenerator(), svc)

	answers, err := r.ExtractAnswers(context.Background(), "sheet", "Sheet1!A:B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != 4 {
		t.Fatalf("expected 4 answers, got %d", len(answers))
	}
	if answers[0] != (Answer{Index: 0, Original: "답변1", Refined: "정제된답변1"}) {
		t.Errorf("unexpected first answer %+v", answers[0])
	}
	if !answers[1].NeedsRefinement || !answers[2].NeedsRefinement {
		t.Error("rows without refined text should need refinement")
	}
	if answers[3].Original != "" || answers[3].Index != 3 {
		t.Errorf("empty row should read as blank, got %+v", answers[3])
	}
}

func TestExtractAnswers_WhitespaceCountsAsBlank(t *testing.T) {
	r := newRefiner(echoGenerator(), rows([]string{"a", "  \n"}))
	answers, _ := r.ExtractAnswers(context.Background(), "sheet", "A:B")
	if !answers[0].NeedsRefinement {
		t.Error("whitespace-only refined cell should need refinement")
	}
}

func TestRefineText_DefaultAndCustomInstruction(t *testing.T) {
	gen := echoGenerator()
	r := newRefiner(gen, rows())

	if _, err := r.RefineText(context.Background(), "답변했다", ""); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(gen.prompts[0], r.DefaultInstruction()) {
		t.Error("blank instruction should use the default")
	}

	got, err := r.RefineText(context.Background(), "답변했다", "~다를 ~함으로 변경해줘")
	if err != nil {
		t.Fatal(err)
	}
	if gen.prompts[1] != "~다를 ~함으로 변경해줘\n\n---\n\n답변했다" {
		t.Errorf("unexpected prompt %q", gen.prompts[1])
	}
	if got != "정제:답변했다" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestRefineText_GeneratorError(t *testing.T) {
	gen := &mockGenerator{generateFunc: func(context.Context, string) (*generator.Result, error) {
		return nil, errors.New("quota exceeded")
	}}
	r := newRefiner(gen, rows())

	_, err := r.RefineText(context.Background(), "x", "")
	if err == nil || !strings.Contains(err.Error(), "AI processing failed") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestRefineText_Truncates(t *testing.T) {
	gen := echoGenerator()
	r := New(gen, rows(), Config{MaxInputChars: 5}, zerolog.Nop())

	if _, err := r.RefineText(context.Background(), "가나다라마바사", "i"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(gen.prompts[0], "가나다라마"+prompt.Ellipsis) {
		t.Errorf("expected truncated text, got %q", gen.prompts[0])
	}
}

func TestRefineText_ProtectsCodeAndLinks(t *testing.T) {
	gen := echoGenerator()
	r := newRefiner(gen, rows())

	got, err := r.RefineText(context.Background(), "`useState` 썼다 https://react.dev", "정리해줘")
	if err != nil {
		t.Fatal(err)
	}
	p := gen.prompts[0]
	if strings.Contains(p, "`useState`") || strings.Contains(p, "https://react.dev") {
		t.Errorf("protected spans leaked into prompt %q", p)
	}
	if !strings.Contains(p, "[KEEP0] 썼다 [KEEP1]") || !strings.Contains(p, "[KEEPn]") {
		t.Errorf("expected markers and hint in prompt %q", p)
	}
	if got != "정제:`useState` 썼다 https://react.dev" {
		t.Errorf("expected spans restored, got %q", got)
	}
}

func TestDefaultInstruction_English(t *testing.T) {
	r := New(echoGenerator(), rows(), Config{Language: "en"}, zerolog.Nop())
	if r.DefaultInstruction() != prompt.DefaultRefineInstruction(prompt.English) {
		t.Error("expected English default instruction")
	}
}

func TestWriteRefined_Dense(t *testing.T) {
	var written [][]string
	svc := rows()
	svc.updateFunc = func(_ context.Context, _, rng string, values [][]string) (*sheets.UpdateResult, error) {
		if rng != "Sheet1!C:C" {
			t.Errorf("unexpected range %q", rng)
		}
		written = values
		return &sheets.UpdateResult{}, nil
	}
	r := newRefiner(echoGenerator(), svc)

	n, err := r.WriteRefined(context.Background(), "sheet", "Sheet1!C:C", []Refined{{Index: 0, Text: "a"}, {Index: 2, Text: "c"}})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 written, got %d", n)
	}
	want := [][]string{{"a"}, {""}, {"c"}}
	if len(written) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), written)
	}
	for i := range want {
		if written[i][0] != want[i][0] {
			t.Errorf("row %d: got %q, want %q", i, written[i][0], want[i][0])
		}
	}
}

func TestWriteRefined_Error(t *testing.T) {
	svc := rows()
	svc.updateFunc = func(context.Context, string, string, [][]string) (*sheets.UpdateResult, error) {
		return nil, errors.New("Write permission denied")
	}
	r := newRefiner(echoGenerator(), svc)

	_, err := r.WriteRefined(context.Background(), "sheet", "C:C", []Refined{{Index: 0, Text: "x"}})
	if err == nil || !strings.Contains(err.Error(), "Write permission denied") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestProcessBatch_AllProcessed(t *testing.T) {
	svc := rows([]string{"a", "done"}, []string{"b", "done too"})
	svc.updateFunc = func(context.Context, string, string, [][]string) (*sheets.UpdateResult, error) {
		t.Error("no write expected")
		return nil, nil
	}
	gen := echoGenerator()
	res := newRefiner(gen, svc).ProcessBatch(context.Background(), testOpts)

	if !res.Success || res.ProcessedCount != 0 || res.SuccessCount != 0 || res.ErrorCount != 0 || res.Errors != nil {
		t.Errorf("expected zero-count success, got %+v", res)
	}
	if len(gen.prompts) != 0 {
		t.Error("generator should not be called")
	}
}

func TestProcessBatch_EmptyRange(t *testing.T) {
	res := newRefiner(echoGenerator(), rows()).ProcessBatch(context.Background(), testOpts)
	if !res.Success || res.ProcessedCount != 0 || res.ErrorCount != 0 {
		t.Errorf("expected zero-count success, got %+v", res)
	}
}

func TestProcessBatch_OnlyBlankRows(t *testing.T) {
	var written [][]string
	svc := rows([]string{"답변1", ""}, []string{"답변2", "정제됨"})
	svc.updateFunc = func(_ context.Context, _, _ string, values [][]string) (*sheets.UpdateResult, error) {
		written = values
		return &sheets.UpdateResult{}, nil
	}

	res := newRefiner(echoGenerator(), svc).ProcessBatch(context.Background(), testOpts)

	if res.SuccessCount != 1 || res.ProcessedCount != 1 || !res.Success {
		t.Errorf("unexpected result %+v", res)
	}
	if len(written) != 1 || written[0][0] != "정제:답변1" {
		t.Errorf("expected a 1-row write, got %v", written)
	}
}

func TestProcessBatch_PartialFailure(t *testing.T) {
	svc := rows([]string{"답변1", ""}, []string{"답변2", ""}, []string{"답변3", ""})
	calls := 0
	gen := &mockGenerator{generateFunc: func(_ context.Context, p string) (*generator.Result, error) {
		calls++
		if strings.HasSuffix(p, "답변2") {
			return nil, errors.New("boom")
		}
		return &generator.Result{Text: "ok"}, nil
	}}

	res := newRefiner(gen, svc).ProcessBatch(context.Background(), testOpts)

	if calls != 3 {
		t.Errorf("expected all rows attempted, got %d calls", calls)
	}
	if !res.Success || res.ProcessedCount != 3 || res.SuccessCount != 2 || res.ErrorCount != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if !strings.HasPrefix(res.Errors[0], "Row 1: ") || !strings.Contains(res.Errors[0], "boom") {
		t.Errorf("expected zero-based row tag, got %q", res.Errors[0])
	}
}

func TestProcessBatch_ReadFailure(t *testing.T) {
	svc := &mockSheets{readFunc: func(context.Context, string, string) (*sheets.RangeData, error) {
		return nil, errors.New("Permission denied")
	}}

	res := newRefiner(echoGenerator(), svc).ProcessBatch(context.Background(), testOpts)

	if res.Success || res.ProcessedCount != 0 || res.ErrorCount != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "Permission denied" {
		t.Errorf("unexpected errors %v", res.Errors)
	}
}

func TestProcessBatch_WriteFailure(t *testing.T) {
	svc := rows([]string{"a", ""})
	svc.updateFunc = func(context.Context, string, string, [][]string) (*sheets.UpdateResult, error) {
		return nil, errors.New("quota")
	}

	res := newRefiner(echoGenerator(), svc).ProcessBatch(context.Background(), testOpts)

	if !res.Success || res.SuccessCount != 1 || res.ErrorCount != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Errors[0] != "Write failed: quota" {
		t.Errorf("unexpected error %q", res.Errors[0])
	}
}

func TestProcessBatch_Panic(t *testing.T) {
	svc := &mockSheets{readFunc: func(context.Context, string, string) (*sheets.RangeData, error) {
		panic("kaboom")
	}}

	res := newRefiner(echoGenerator(), svc).ProcessBatch(context.Background(), testOpts)

	if res.Success || res.ErrorCount != 1 || res.ProcessedCount != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Errors[0] != "Unexpected error: kaboom" {
		t.Errorf("unexpected error %q", res.Errors[0])
	}
}

// memSheet keeps answers in column A and refined text in column B. The
// target range always addresses column B.
type memSheet struct {
	answers []string
	refined []string
}

func (m *memSheet) ReadRange(_ context.Context, _, rng string) (*sheets.RangeData, error) {
	data := &sheets.RangeData{Range: rng}
	for i, a := range m.answers {
		if rng == testOpts.TargetRange {
			data.Values = append(data.Values, []string{m.refined[i]})
		} else {
			data.Values = append(data.Values, []string{a, m.refined[i]})
		}
	}
	return data, nil
}

func (m *memSheet) UpdateRange(_ context.Context, _, _ string, values [][]string) (*sheets.UpdateResult, error) {
	for i, row := range values {
		m.refined[i] = row[0]
	}
	return &sheets.UpdateResult{UpdatedRows: int64(len(values))}, nil
}

func (m *memSheet) Metadata(context.Context, string) (*sheets.Metadata, error) {
	return &sheets.Metadata{}, nil
}

func TestProcessBatch_Idempotent(t *testing.T) {
	sheet := &memSheet{answers: []string{"a", "b", "c"}, refined: []string{"", "", ""}}
	r := newRefiner(echoGenerator(), sheet)

	first := r.ProcessBatch(context.Background(), testOpts)
	if first.SuccessCount != 3 {
		t.Fatalf("first run: unexpected result %+v", first)
	}

	second := r.ProcessBatch(context.Background(), testOpts)
	if !second.Success || second.ProcessedCount != 0 || second.SuccessCount != 0 || second.ErrorCount != 0 {
		t.Errorf("second run should be a no-op, got %+v", second)
	}
}

func TestProcessBatch_RoundTrip(t *testing.T) {
	sheet := &memSheet{answers: []string{"a", "b"}, refined: []string{"", ""}}
	r := newRefiner(echoGenerator(), sheet)

	r.ProcessBatch(context.Background(), testOpts)

	data, _ := sheet.ReadRange(context.Background(), "sheet", testOpts.TargetRange)
	for i, want := range []string{"정제:a", "정제:b"} {
		if data.Values[i][0] != want {
			t.Errorf("index %d: got %q, want %q", i, data.Values[i][0], want)
		}
	}
}
