package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/exploopio/reportlens/pkg/compress"
	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/dedup"
	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/intake"
)

// handleReports analyzes the request body. The body may be gzip or zstd
// encoded; the size cap applies to both the wire and the decoded bytes.
//
// Query parameters:
//
//	threshold       similarity threshold in [0, 1]
//	group_by_rule   bucket by rule id and severity (bool)
//	similar         enable fuzzy message matching (bool)
//	filename        original file name, checked against .json/.sarif
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleReports"

	q := r.URL.Query()
	opts, err := dedupOptions(q, s.analyzer.DedupOptions())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if name := q.Get("filename"); name != "" {
		if err := intake.ValidateUpload(name, r.ContentLength); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	alg, err := compress.ParseAlgorithm(r.Header.Get("Content-Encoding"))
	if err != nil {
		s.writeError(w, r, errors.E(errors.KindInvalidInput, op, "unsupported Content-Encoding", err))
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	data, err := intake.ReadAll(body, alg, intake.MaxReportSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	analysis, err := s.analyzer.AnalyzeBytes(data, &opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("analyzed %s report: %d findings, %d groups request_id=%s",
		analysis.Format, len(analysis.Results), len(analysis.Groups), requestID(r))
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"formats": s.analyzer.Registry().List(),
	})
}

// dedupOptions overlays query parameters on the server defaults.
func dedupOptions(q url.Values, defaults dedup.Options) (dedup.Options, error) {
	const op = "server.dedupOptions"
	opts := defaults

	if v := q.Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, errors.E(errors.KindInvalidInput, op, fmt.Sprintf("threshold %q is not a number", v))
		}
		if err := core.ValidateThreshold("threshold", t); err != nil {
			return opts, errors.E(errors.KindInvalidInput, op, err.Error())
		}
		opts.SimilarityThreshold = t
	}

	for name, dst := range map[string]*bool{
		"group_by_rule": &opts.GroupByRuleID,
		"similar":       &opts.GroupBySimilarMessage,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.E(errors.KindInvalidInput, op, fmt.Sprintf("%s %q is not a boolean", name, v))
		}
		*dst = b
	}
	return opts, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := errors.ToAPIError(err, requestID(r))
	if apiErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v request_id=%s", r.Method, r.URL.Path, err, apiErr.RequestID)
	} else {
		s.logger.Debug("%s %s: %v request_id=%s", r.Method, r.URL.Path, err, apiErr.RequestID)
	}
	writeJSON(w, apiErr.StatusCode, apiErr)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
