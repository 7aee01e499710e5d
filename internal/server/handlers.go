package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/KaramelBytes/spendloom-cli/internal/archive"
	"github.com/KaramelBytes/spendloom-cli/internal/export"
	"github.com/KaramelBytes/spendloom-cli/internal/log"
	"github.com/KaramelBytes/spendloom-cli/internal/notify"
	"github.com/KaramelBytes/spendloom-cli/internal/parser"
	"github.com/KaramelBytes/spendloom-cli/internal/prompt"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

var (
	errMissingFile = errors.New(`missing multipart field "file"`)
	errBadField    = errors.New("invalid form field")
)

type errorResponse struct {
	Error string `json:"error"`
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingFile),
		errors.Is(err, errBadField),
		errors.Is(err, parser.ErrUnsupported),
		errors.Is(err, parser.ErrOutputWorkbook),
		errors.Is(err, analysis.ErrMissingColumn),
		errors.Is(err, analysis.ErrUnknownCurrency),
		errors.Is(err, prompt.ErrEmptyQuestion),
		errors.Is(err, prompt.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, prompt.ErrNoHighRisk):
		return http.StatusUnprocessableEntity
	case errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// analyzeUpload saves the multipart "file" field to a temp dir and runs the
// pipeline on it.
func (s *Server) analyzeUpload(c *gin.Context) (*analysis.Result, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, errMissingFile
	}
	opt := s.opt.Analysis
	if v := c.PostForm("strict_currency"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: strict_currency=%q is not a boolean", errBadField, v)
		}
		opt.StrictCurrency = strict
	}
	name := filepath.Base(fh.Filename)
	if parser.IsOutputFile(name) {
		return nil, fmt.Errorf("%w: %s", parser.ErrOutputWorkbook, name)
	}
	dir, err := os.MkdirTemp("", "spendloom-upload-")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	t, err := parser.LoadFile(path, parser.Options{SheetName: c.PostForm("sheet")})
	if err != nil {
		return nil, err
	}
	return analysis.Run(t, opt)
}

// handleAnalyze POST /api/analyze
func (s *Server) handleAnalyze(c *gin.Context) {
	res, err := s.analyzeUpload(c)
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	if id := s.record(c, res); id != "" {
		c.Header("X-Run-Id", id)
	}
	c.JSON(http.StatusOK, res)
}

// record archives res and publishes the completion event. Failures are
// logged; the analysis response is still served.
func (s *Server) record(c *gin.Context, res *analysis.Result) string {
	run := archive.FromResult(res, s.opt.Now())
	if s.opt.Archive != nil {
		if err := s.opt.Archive.Save(c.Request.Context(), run); err != nil {
			s.log.Error("archive run", log.FieldError, err)
			return ""
		}
	}
	msg := notify.NewAnalysisCompleted(run.ID, res, run.CreatedAt)
	if err := s.opt.Publisher.Publish(c.Request.Context(), msg); err != nil {
		s.log.Warn("publish analysis event", log.FieldRunID, run.ID, log.FieldError, err)
	}
	if s.opt.Archive == nil {
		return ""
	}
	return run.ID
}

// handleExport POST /api/export
func (s *Server) handleExport(c *gin.Context) {
	res, err := s.analyzeUpload(c)
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	eo := export.DefaultOptions()
	if v, err := strconv.ParseFloat(c.PostForm("variance_min"), 64); err == nil {
		eo.VarianceMin = v
	}
	if v, err := strconv.ParseFloat(c.PostForm("variance_max"), 64); err == nil {
		eo.VarianceMax = v
	}
	base := strings.TrimSuffix(res.Source, filepath.Ext(res.Source))
	if base == "" {
		base = "spend"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"_Output.xlsx"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := export.WriteXLSXTo(res, c.Writer, eo); err != nil {
		s.log.Error("write workbook", log.FieldError, err)
	}
}

type summarizeResponse struct {
	Kind    string `json:"kind"`
	Model   string `json:"model"`
	Content string `json:"content"`
	Shared  bool   `json:"shared"`
}

// handleSummarize POST /api/summarize
// Identical prompts in flight at the same time share one LLM call.
func (s *Server) handleSummarize(c *gin.Context) {
	if s.opt.Summarizer == nil || s.opt.Summarizer.Runtime == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("LLM runtime not configured"))
		return
	}
	res, err := s.analyzeUpload(c)
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	kind := c.DefaultPostForm("kind", prompt.KindSummary)
	p, err := prompt.Build(kind, res, c.PostForm("question"))
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	sum := sha256.Sum256([]byte(p.Kind + "\x00" + p.User))
	key := hex.EncodeToString(sum[:])

	// The shared call outlives any single caller; each caller waits on its
	// own request context.
	reqCtx := c.Request.Context()
	detached := context.WithoutCancel(reqCtx)
	ch := s.calls.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(detached, s.opt.SummarizeTimeout)
		defer cancel()
		resp, err := s.opt.Summarizer.Complete(ctx, p)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-reqCtx.Done():
		abort(c, http.StatusGatewayTimeout, reqCtx.Err())
		return
	}
	if r.Err != nil {
		s.log.Error("summarize", log.FieldModel, s.opt.Summarizer.Request(p).Model, log.FieldError, r.Err)
		abort(c, http.StatusBadGateway, r.Err)
		return
	}
	content, shared := r.Val.(string), r.Shared
	if id := c.PostForm("run_id"); id != "" && s.opt.Archive != nil {
		if err := s.opt.Archive.SetSummary(c.Request.Context(), id, content); err != nil {
			s.log.Warn("store summary", log.FieldRunID, id, log.FieldError, err)
		}
	}
	c.JSON(http.StatusOK, summarizeResponse{
		Kind:    p.Kind,
		Model:   s.opt.Summarizer.Request(p).Model,
		Content: content,
		Shared:  shared,
	})
}

// handleListRuns GET /api/runs?limit=N
func (s *Server) handleListRuns(c *gin.Context) {
	if s.opt.Archive == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("run archive disabled"))
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := s.opt.Archive.List(c.Request.Context(), limit)
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// handleGetRun GET /api/runs/:id
func (s *Server) handleGetRun(c *gin.Context) {
	if s.opt.Archive == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("run archive disabled"))
		return
	}
	run, err := s.opt.Archive.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, run)
}
