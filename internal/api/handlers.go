package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zrouga/CoAI-app/internal/intel"
	"github.com/zrouga/CoAI-app/internal/pipeline"
)

const (
	defaultPageSize = 20
	minPageSize     = 5
	maxPageSize     = 100
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

func (s *Server) submitPipeline(w http.ResponseWriter, r *http.Request) {
	var req pipeline.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	run, err := s.svc.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"keyword": run.Keyword,
		"status":  run.Status,
		"stream":  "/v1/stream/" + strings.ReplaceAll(run.Keyword, " ", "%20"),
		"run":     run,
	})
}

func (s *Server) pipelineStatus(w http.ResponseWriter, r *http.Request) {
	keyword := keywordParam(r)
	run, err := s.svc.Status(r.Context(), keyword)
	if err != nil {
		if errors.Is(err, intel.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "no pipeline found for keyword")
			return
		}
		s.logger.Error("status lookup failed", zap.String("keyword", keyword), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load pipeline status")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) keywordResults(w http.ResponseWriter, r *http.Request) {
	keyword := keywordParam(r)
	sortBy, desc, err := parseSort(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, pageSize, err := parsePagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.store.ProductsByKeyword(r.Context(), keyword, sortBy, desc, (page-1)*pageSize, pageSize)
	if err != nil {
		if errors.Is(err, intel.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "no results for keyword")
			return
		}
		s.logger.Error("results query failed", zap.String("keyword", keyword), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}

	ids := make([]int64, 0, len(result.Products))
	for _, p := range result.Products {
		ids = append(ids, p.ID)
	}
	traffic, err := s.store.TrafficForProducts(r.Context(), ids)
	if err != nil {
		s.logger.Error("traffic join failed", zap.String("keyword", keyword), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load traffic data")
		return
	}

	s.writeJSON(w, http.StatusOK, resultsResponse{
		Keyword:    keyword,
		Total:      result.Total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (result.Total + pageSize - 1) / pageSize,
		Products:   toProductDTOs(result.Products, traffic),
	})
}

func (s *Server) keywordLogs(w http.ResponseWriter, r *http.Request) {
	keyword := keywordParam(r)
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if val > maxLogLimit {
			val = maxLogLimit
		}
		limit = val
	}

	entries, ok := s.logs.Tail(keyword, limit)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no logs for keyword")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"keyword": keyword,
		"count":   len(entries),
		"logs":    entries,
	})
}

func (s *Server) deleteKeyword(w http.ResponseWriter, r *http.Request) {
	keyword := keywordParam(r)
	if err := s.svc.Delete(r.Context(), keyword); err != nil {
		if errors.Is(err, intel.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "no results for keyword")
			return
		}
		s.logger.Error("delete failed", zap.String("keyword", keyword), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to delete results")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"keyword": keyword, "deleted": true})
}

func (s *Server) deleteBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Keywords) == 0 {
		s.writeError(w, http.StatusBadRequest, "keywords required")
		return
	}

	deleted := make([]string, 0, len(req.Keywords))
	notFound := make([]string, 0)
	for _, keyword := range req.Keywords {
		err := s.svc.Delete(r.Context(), keyword)
		switch {
		case err == nil:
			deleted = append(deleted, keyword)
		case errors.Is(err, intel.ErrNotFound):
			notFound = append(notFound, keyword)
		default:
			s.logger.Error("bulk delete failed", zap.String("keyword", keyword), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to delete results")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"deleted":   deleted,
		"not_found": notFound,
	})
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	rate := 0.0
	if counts.Products > 0 {
		rate = float64(counts.ProductsWithTraffic) / float64(counts.Products)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"keywords_tracked":      counts.Keywords,
		"products_discovered":   counts.Products,
		"products_with_traffic": counts.ProductsWithTraffic,
		"enrichment_rate":       rate,
		"active_pipelines":      s.svc.ActiveRuns(),
		"generated_at":          time.Now().UTC(),
	})
}

func parseSort(r *http.Request) (intel.ProductSort, bool, error) {
	q := r.URL.Query()
	sortBy := intel.SortMonthlyVisits
	switch q.Get("sort_by") {
	case "", "monthly_visits":
	case "brand_name":
		sortBy = intel.SortBrandName
	case "brand_domain":
		sortBy = intel.SortBrandDomain
	case "first_discovered":
		sortBy = intel.SortDiscoveredAt
	default:
		return "", false, errors.New("invalid sort_by")
	}

	desc := true
	switch q.Get("order") {
	case "", "desc":
	case "asc":
		desc = false
	default:
		return "", false, errors.New("invalid order")
	}
	return sortBy, desc, nil
}

func parsePagination(r *http.Request) (page, pageSize int, err error) {
	q := r.URL.Query()
	page = 1
	if raw := q.Get("page"); raw != "" {
		val, convErr := strconv.Atoi(raw)
		if convErr != nil || val <= 0 {
			return 0, 0, errors.New("invalid page")
		}
		page = val
	}
	pageSize = defaultPageSize
	if raw := q.Get("page_size"); raw != "" {
		val, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, 0, errors.New("invalid page_size")
		}
		if val < minPageSize {
			val = minPageSize
		}
		if val > maxPageSize {
			val = maxPageSize
		}
		pageSize = val
	}
	return page, pageSize, nil
}
