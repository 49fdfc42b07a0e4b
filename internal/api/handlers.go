package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/callback"
	"github.com/JakeFAU/site-enricher/internal/site"
)

type crawlRequest struct {
	URL       string   `json:"url"`
	Tags      []string `json:"tags"`
	Languages []string `json:"languages"`
	SubmitBy  string   `json:"submit_by"`
	UseCache  bool     `json:"use_cache"`
}

type crawlAsyncRequest struct {
	URL         string   `json:"url"`
	CallbackURL string   `json:"callback_url"`
	Key         string   `json:"key"`
	Tags        []string `json:"tags"`
	Languages   []string `json:"languages"`
}

type submitRequest struct {
	URL      string `json:"url"`
	Priority int    `json:"priority"`
	SubmitBy string `json:"submit_by"`
}

type pendingRequest struct {
	Limit   int    `json:"limit"`
	OrderBy string `json:"order_by"`
}

type ackResponse struct {
	Code site.Code `json:"code"`
	Msg  string    `json:"msg"`
}

type submissionResponse struct {
	Code site.Code              `json:"code"`
	Msg  string                 `json:"msg"`
	Data *site.SubmissionRecord `json:"data,omitempty"`
}

type pendingResponse struct {
	Code site.Code               `json:"code"`
	Msg  string                  `json:"msg"`
	Data []site.SubmissionRecord `json:"data"`
}

type drainResponse struct {
	Code         site.Code `json:"code"`
	Msg          string    `json:"msg"`
	Result       any       `json:"result"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"success_count"`
	ElapsedMs    int64     `json:"elapsed_ms"`
}

// decode reads a JSON body. An empty body decodes to the zero value so
// list-style routes can be called without one.
func decode(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// crawlSite is the cache-aware synchronous enrichment.
func (s *Server) crawlSite(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.enrichSync(w, r, site.EnrichmentRequest{
		URL:         req.URL,
		Tags:        req.Tags,
		Languages:   req.Languages,
		UseCache:    req.UseCache,
		SubmittedBy: req.SubmitBy,
	})
}

// crawl always re-crawls.
func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.enrichSync(w, r, site.EnrichmentRequest{
		URL:       req.URL,
		Tags:      req.Tags,
		Languages: req.Languages,
	})
}

func (s *Server) enrichSync(w http.ResponseWriter, r *http.Request, req site.EnrichmentRequest) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	res := s.enricher.EnrichAndStore(r.Context(), req)
	writeJSON(w, http.StatusOK, site.EnvelopeOf(res))
}

func (s *Server) crawlAsync(w http.ResponseWriter, r *http.Request) {
	var req crawlAsyncRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if strings.TrimSpace(req.CallbackURL) == "" {
		writeError(w, http.StatusBadRequest, "callback_url is required")
		return
	}

	err := s.dispatcher.DispatchAsync(r.Context(), callback.Task{
		URL:         req.URL,
		CallbackURL: strings.TrimSpace(req.CallbackURL),
		Key:         req.Key,
		Tags:        req.Tags,
		Languages:   req.Languages,
	})
	if err != nil {
		s.logger.Warn("dispatch failed", zap.String("url", req.URL), zap.Error(err))
		writeJSON(w, http.StatusOK, ackResponse{Code: site.CodeFailure, Msg: site.CodeFailure.Message() + ": " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Code: site.CodeSuccess, Msg: site.CodeSuccess.Message()})
}

func (s *Server) submitSite(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	rec, err := s.submissions.Submit(r.Context(), req.URL, req.Priority, req.SubmitBy)
	if err != nil {
		if !errors.Is(err, site.ErrDuplicate) {
			s.logger.Error("submit failed", zap.String("url", req.URL), zap.Error(err))
		}
		writeJSON(w, http.StatusOK, submissionResponse{Code: site.CodeFailure, Msg: site.CodeFailure.Message() + ": " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, submissionResponse{Code: site.CodeSuccess, Msg: site.CodeSuccess.Message(), Data: &rec})
}

func (s *Server) getTodoSite(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	recs, err := s.submissions.ListPending(r.Context(), req.Limit, site.ParseOrder(req.OrderBy))
	if err != nil {
		s.logger.Error("list pending failed", zap.Error(err))
		writeJSON(w, http.StatusOK, pendingResponse{
			Code: site.CodeFailure,
			Msg:  site.CodeFailure.Message() + ": " + err.Error(),
			Data: []site.SubmissionRecord{},
		})
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Code: site.CodeSuccess, Msg: site.CodeSuccess.Message(), Data: recs})
}

func (s *Server) crawlTodoSite(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	report := s.drainer.DrainPending(r.Context(), req.Limit, site.ParseOrder(req.OrderBy))
	resp := drainResponse{
		Code:         site.CodeSuccess,
		Msg:          site.CodeSuccess.Message(),
		Result:       report.Items,
		Total:        report.Total,
		SuccessCount: report.SuccessCount,
		ElapsedMs:    report.Elapsed.Milliseconds(),
	}
	if report.Err != nil {
		resp.Code = site.CodeFailure
		resp.Msg = site.CodeFailure.Message() + ": " + report.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
