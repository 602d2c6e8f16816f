// Package sheets reads and writes rectangular cell ranges in Google
// spreadsheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/valpere/sheetmentor/internal/apperr"
	"github.com/valpere/sheetmentor/internal/auth"
)

// ValueInputOption is how written values are interpreted. RAW stores them
// verbatim, without formula or number parsing.
const ValueInputOption = "RAW"

// Service is the spreadsheet surface the pipelines depend on.
type Service interface {
	ReadRange(ctx context.Context, spreadsheetID, rng string) (*RangeData, error)
	UpdateRange(ctx context.Context, spreadsheetID, rng string, values [][]string) (*UpdateResult, error)
	Metadata(ctx context.Context, spreadsheetID string) (*Metadata, error)
}

// RangeData is a read range. Values is row-major; rows may be ragged and
// are never nil-padded.
type RangeData struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

type UpdateResult struct {
	UpdatedRange   string `json:"updatedRange"`
	UpdatedRows    int64  `json:"updatedRows"`
	UpdatedColumns int64  `json:"updatedColumns"`
	UpdatedCells   int64  `json:"updatedCells"`
}

type SheetInfo struct {
	ID          int64  `json:"sheetId"`
	Title       string `json:"title"`
	Index       int64  `json:"index"`
	RowCount    int64  `json:"rowCount"`
	ColumnCount int64  `json:"columnCount"`
}

type Metadata struct {
	SpreadsheetID string      `json:"spreadsheetId"`
	Title         string      `json:"title"`
	Locale        string      `json:"locale"`
	Sheets        []SheetInfo `json:"sheets"`
}

// GoogleSheets implements Service on the Sheets v4 REST API.
type GoogleSheets struct {
	svc *gsheets.Service
	ts  oauth2.TokenSource
}

// New builds a client authenticated by ts. Extra options are appended after
// the token source, so option.WithHTTPClient overrides it.
func New(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*GoogleSheets, error) {
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := gsheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &GoogleSheets{svc: svc, ts: ts}, nil
}

func (g *GoogleSheets) ReadRange(ctx context.Context, spreadsheetID, rng string) (*RangeData, error) {
	if _, err := auth.Token(g.ts); err != nil {
		return nil, err
	}

	vr, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, requestError(err)
	}

	data := &RangeData{
		Range:          vr.Range,
		MajorDimension: vr.MajorDimension,
		Values:         make([][]string, 0, len(vr.Values)),
	}
	for _, row := range vr.Values {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = cellString(c)
		}
		data.Values = append(data.Values, cells)
	}
	return data, nil
}

func (g *GoogleSheets) UpdateRange(ctx context.Context, spreadsheetID, rng string, values [][]string) (*UpdateResult, error) {
	if _, err := auth.Token(g.ts); err != nil {
		return nil, err
	}

	rows := make([][]interface{}, len(values))
	for i, row := range values {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		rows[i] = cells
	}

	resp, err := g.svc.Spreadsheets.Values.
		Update(spreadsheetID, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption(ValueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return nil, requestError(err)
	}

	return &UpdateResult{
		UpdatedRange:   resp.UpdatedRange,
		UpdatedRows:    resp.UpdatedRows,
		UpdatedColumns: resp.UpdatedColumns,
		UpdatedCells:   resp.UpdatedCells,
	}, nil
}

func (g *GoogleSheets) Metadata(ctx context.Context, spreadsheetID string) (*Metadata, error) {
	if _, err := auth.Token(g.ts); err != nil {
		return nil, err
	}

	ss, err := g.svc.Spreadsheets.Get(spreadsheetID).
		Fields(googleapi.Field("spreadsheetId,properties(title,locale),sheets.properties")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, requestError(err)
	}

	md := &Metadata{SpreadsheetID: ss.SpreadsheetId}
	if ss.Properties != nil {
		md.Title = ss.Properties.Title
		md.Locale = ss.Properties.Locale
	}
	for _, sh := range ss.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		info := SheetInfo{
			ID:    sh.Properties.SheetId,
			Title: sh.Properties.Title,
			Index: sh.Properties.Index,
		}
		if gp := sh.Properties.GridProperties; gp != nil {
			info.RowCount = gp.RowCount
			info.ColumnCount = gp.ColumnCount
		}
		md.Sheets = append(md.Sheets, info)
	}
	return md, nil
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// requestError classifies a client error. HTTP failures read
// "API request failed: <code> <status text>"; transport failures read
// "Request failed: <cause>".
func requestError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := apperr.KindAPI
		if gerr.Code == http.StatusUnauthorized {
			kind = apperr.KindAuth
		}
		msg := fmt.Sprintf("API request failed: %d %s", gerr.Code, http.StatusText(gerr.Code))
		return apperr.Wrap(err, kind, msg)
	}
	return apperr.Wrap(err, apperr.KindNetwork, "Request failed")
}
