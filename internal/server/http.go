package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dchest/uniuri"
	"github.com/gin-gonic/gin"
	"github.com/revrun/revrun/pkg/revrun"
	"github.com/sirupsen/logrus"
)

const (
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"
)

// runState tracks one asynchronously executing run.
type runState struct {
	status string
	report revrun.Report
	err    error
}

type httpServer struct {
	log *logrus.Logger

	mu   sync.Mutex
	runs map[string]*runState
}

func (h *httpServer) Init(port int, log *logrus.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	return h.router(log).Run(fmt.Sprintf("localhost:%d", port))
}

func (h *httpServer) router(log *logrus.Logger) *gin.Engine {
	h.log = log
	h.runs = make(map[string]*runState)

	router := gin.Default()

	router.POST("/runs", h.postRun)
	router.GET("/runs/:runId", h.getRun)
	router.GET("/runs/:runId/report", h.getReport)

	return router
}

type runRequest struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end"`

	Command string `json:"command" binding:"required"`

	Path string `json:"path"`
	Mode string `json:"mode"`

	Workers        int `json:"workers"`
	TimeoutSeconds int `json:"timeoutSeconds"`
}

type runResponse struct {
	RunId string `json:"runId"`

	Status string `json:"status"`

	Commits   int `json:"commits"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Errored   int `json:"errored"`

	Error string `json:"error,omitempty"`
}

type outcomeResponse struct {
	Commit string `json:"commit"`

	Status   string `json:"status"`
	ExitCode int    `json:"exitCode"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	Error string `json:"error,omitempty"`
}

func (h *httpServer) postRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := revrun.ModeWorktree
	if req.Mode != "" {
		var err error
		mode, err = revrun.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	run := &revrun.Run{
		Start: req.Start,
		End:   req.End,

		Command: req.Command,

		RepoPath: req.Path,
		Mode:     mode,

		Workers: req.Workers,
		Timeout: time.Duration(req.TimeoutSeconds) * time.Second,

		Log: h.log,
	}

	id := uniuri.New()
	h.mu.Lock()
	h.runs[id] = &runState{status: statusRunning}
	h.mu.Unlock()

	go func() {
		report, err := run.Execute(context.Background())

		h.mu.Lock()
		defer h.mu.Unlock()
		state := h.runs[id]
		state.report = report
		if err != nil {
			state.status = statusFailed
			state.err = err
			h.log.Warnf("Run %s failed - %v", id, err)
			return
		}
		state.status = statusDone
	}()

	c.JSON(http.StatusAccepted, runResponse{RunId: id, Status: statusRunning})
}

func (h *httpServer) getRun(c *gin.Context) {
	id := c.Param("runId")

	h.mu.Lock()
	state, found := h.runs[id]
	if !found {
		h.mu.Unlock()
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	res := runResponse{
		RunId: id,

		Status: state.status,

		Commits:   len(state.report.Outcomes),
		Succeeded: state.report.Succeeded,
		Failed:    state.report.Failed,
		Errored:   state.report.Errored,
	}
	if state.err != nil {
		res.Error = state.err.Error()
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, res)
}

func (h *httpServer) getReport(c *gin.Context) {
	id := c.Param("runId")

	h.mu.Lock()
	state, found := h.runs[id]
	if !found {
		h.mu.Unlock()
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if state.status == statusRunning {
		h.mu.Unlock()
		c.AbortWithStatus(http.StatusConflict)
		return
	}

	outcomes := make([]outcomeResponse, 0, len(state.report.Outcomes))
	for _, outcome := range state.report.Outcomes {
		res := outcomeResponse{
			Commit: outcome.Commit,

			Status:   outcome.Status.String(),
			ExitCode: outcome.ExitCode,

			Stdout: outcome.Stdout,
			Stderr: outcome.Stderr,
		}
		if outcome.Err != nil {
			res.Error = outcome.Err.Error()
		}
		outcomes = append(outcomes, res)
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, outcomes)
}
