package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/extractor"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
)

// submitDocumentRequest is the POST /documents payload. Text is the
// ordinance body; town/county/state override whatever the model extracts.
type submitDocumentRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Town     string `json:"town"`
	County   string `json:"county"`
	State    string `json:"state"`
}

func (s *Server) handleSubmitDocument(w http.ResponseWriter, r *http.Request) {
	var req submitDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Filename == "" {
		req.Filename = "api-submission.txt"
	}

	jobID := uuid.NewString()
	extractReq := extractorRequest(jobID, req)

	go func() {
		if _, err := s.pipeline.Run(s.baseCtx, extractReq); err != nil {
			zap.L().Error("api: document job failed",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(model.JobStatusPending),
	})
}

func extractorRequest(jobID string, req submitDocumentRequest) extractor.Request {
	return extractor.Request{
		JobID:    jobID,
		Filename: req.Filename,
		Text:     req.Text,
		Town:     req.Town,
		County:   req.County,
		State:    req.State,
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jobs, err := s.store.ListJobs(r.Context(), store.JobFilter{
		Status: model.JobStatus(q.Get("status")),
		Town:   q.Get("town"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) handleJobSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.SummarizeJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListRequirements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := s.store.ListRequirements(r.Context(), store.RequirementFilter{
		Town:          q.Get("town"),
		County:        q.Get("county"),
		State:         q.Get("state"),
		Zone:          q.Get("zone"),
		MinConfidence: queryFloat(r, "min_confidence"),
		Limit:         queryInt(r, "limit", 100),
		Offset:        queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requirements": reqs, "count": len(reqs)})
}

// createExperimentRequest is the POST /experiments payload. PromptText may
// be empty; the pipeline substitutes the built-in default prompt.
type createExperimentRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Hypothesis  string  `json:"hypothesis"`
	PromptText  string  `json:"prompt_text"`
	LLMModel    string  `json:"llm_model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	IsBaseline  bool    `json:"is_baseline"`
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if req.Temperature == 0 {
		req.Temperature = model.DefaultTemperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = model.DefaultMaxTokens
	}

	now := time.Now().UTC()
	exp := &model.PromptExperiment{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Description:   req.Description,
		Hypothesis:    req.Hypothesis,
		PromptText:    req.PromptText,
		PromptVersion: 1,
		LLMModel:      req.LLMModel,
		Temperature:   req.Temperature,
		MaxTokens:     req.MaxTokens,
		IsBaseline:    req.IsBaseline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateExperiment(r.Context(), exp); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	exps, err := s.store.ListExperiments(r.Context(), store.ExperimentFilter{
		MinTests: queryInt(r, "min_tests", 0),
		Limit:    queryInt(r, "limit", 50),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": exps, "count": len(exps)})
}

func (s *Server) handleToggleExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exp, err := s.store.GetExperiment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if exp == nil {
		writeError(w, http.StatusNotFound, "experiment not found")
		return
	}

	if err := s.store.SetExperimentActive(r.Context(), id, !exp.IsActive); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": !exp.IsActive})
}

// runExperimentRequest names the ground-truth document to score against.
type runExperimentRequest struct {
	GroundTruthDocID string `json:"ground_truth_doc_id"`
}

func (s *Server) handleRunExperiment(w http.ResponseWriter, r *http.Request) {
	var req runExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GroundTruthDocID == "" {
		writeError(w, http.StatusBadRequest, "ground_truth_doc_id is required")
		return
	}

	res, err := s.evaluator.RunTest(r.Context(), chi.URLParam(r, "id"), req.GroundTruthDocID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"test_id":         res.ID,
		"accuracy_scores": res.Scores,
		"parsed_zones":    res.ParsedZonesCount,
		"success":         res.Success,
		"cost_usd":        res.CostUSD,
	})
}

func (s *Server) handleListDistricts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	districts, err := s.store.ListDistricts(r.Context(), store.DistrictFilter{
		Municipality: q.Get("municipality"),
		State:        q.Get("state"),
		Limit:        queryInt(r, "limit", 500),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"districts": districts, "count": len(districts)})
}
