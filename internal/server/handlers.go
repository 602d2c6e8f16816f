package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/valpere/sheetmentor/internal/apperr"
	"github.com/valpere/sheetmentor/internal/sheets"
	"github.com/valpere/sheetmentor/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error     string      `json:"error"`
	ErrorType apperr.Kind `json:"errorType"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error(), ErrorType: kind})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMessage answers every decodable request with 200 and the message
// envelope; success is carried inside the envelope.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.KindValidation, "failed to read request body"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Messages.HandleRaw(r.Context(), raw))
}

type settingBody struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

type putSettingBody struct {
	Value *string `json:"value" validate:"required"`
}

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	keys, err := s.deps.Settings.Keys()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keys": keys})
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok, err := s.deps.Settings.Get(key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "setting not found: " + key, ErrorType: apperr.KindStorage})
		return
	}
	writeJSON(w, http.StatusOK, settingBody{Key: key, Value: value})
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	var body putSettingBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.KindValidation, "invalid request body"))
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, r, apperr.Validation("value is required"))
		return
	}

	key := chi.URLParam(r, "key")
	if err := s.deps.Settings.Set(key, *body.Value); err != nil {
		writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Debug().Str("key", key).Msg("setting saved")
	writeJSON(w, http.StatusOK, settingBody{Key: key, Value: *body.Value})
}

func (s *Server) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Settings.Delete(chi.URLParam(r, "key")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, r, apperr.New(apperr.KindStorage, "run history is disabled"))
		return
	}

	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, apperr.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	runs, err := s.deps.History.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, r, apperr.New(apperr.KindStorage, "run history is disabled"))
		return
	}
	run, err := s.deps.History.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, r, apperr.New(apperr.KindStorage, "run history is disabled"))
		return
	}
	stats, err := s.deps.History.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawURL := q.Get("url")
	if !sheets.IsSheetsURL(rawURL) {
		writeError(w, r, apperr.Validation("not a Google Sheets URL"))
		return
	}
	writeJSON(w, http.StatusOK, sheets.Detect(rawURL, q.Get("title")))
}
