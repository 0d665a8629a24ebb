package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/copyleftdev/anneal/internal/config"
	apperrors "github.com/copyleftdev/anneal/internal/errors"
	"github.com/copyleftdev/anneal/internal/logging"
	"github.com/copyleftdev/anneal/internal/optimization"
	"github.com/copyleftdev/anneal/internal/optimization/anneal"
	"github.com/copyleftdev/anneal/internal/store"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Job states.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// JobState tracks one annealing job. Fields are guarded by Server.jobsMu.
type JobState struct {
	ID          string
	Objective   string
	Schedule    anneal.ScheduleKind
	Seed        uint64
	State       string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	// Progress is the fraction of the cooling-step budget used so far.
	Progress  float64
	Best      *optimization.Solution
	FEval     int
	Result    *anneal.Result
	Err       string
	cancel    context.CancelFunc
	optimizer *anneal.Optimizer
}

// Server implements the HTTP and JSON-RPC 2.0 API for annealing jobs.
type Server struct {
	cfg      *config.Config
	logger   Logger
	store    *store.Store
	metrics  *Metrics
	defaults anneal.Options
	slots    chan struct{}

	jobs   map[string]*JobState
	jobsMu sync.RWMutex
	wg     sync.WaitGroup
}

// NewServer creates a server. st may be nil to keep runs in memory only.
func NewServer(cfg *config.Config, logger Logger, st *store.Store, metrics *Metrics) (*Server, error) {
	defaults, err := cfg.AnnealOptions()
	if err != nil {
		return nil, err
	}
	workers := cfg.Optimization.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		metrics:  metrics,
		defaults: defaults,
		slots:    make(chan struct{}, workers),
		jobs:     make(map[string]*JobState),
	}, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/anneal", s.handleStart)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/anneal/{id}", s.handleCancel)
		r.Get("/runs", s.handleRuns)
	})

	r.Post("/rpc", s.handleJSONRPC)
}

// Start validates req and queues the job. It returns the job id.
func (s *Server) Start(req JobRequest) (string, error) {
	j, err := req.build(s.defaults)
	if err != nil {
		return "", apperrors.BadRequest(err, "invalid anneal request").WithOperation("start")
	}

	id := uuid.New()
	if j.opts.Seed == 0 {
		j.opts.Seed = binary.BigEndian.Uint64(id[:8]) | 1
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout := s.cfg.Optimization.JobTimeout; timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	now := time.Now()
	state := &JobState{
		ID:          id.String(),
		Objective:   j.fn.Name,
		Schedule:    j.opts.Schedule,
		Seed:        j.opts.Seed,
		State:       StatePending,
		StartTime:   now,
		LastUpdated: now,
		cancel:      cancel,
	}

	s.jobsMu.Lock()
	s.jobs[state.ID] = state
	s.jobsMu.Unlock()

	if s.metrics != nil {
		s.metrics.JobsStarted.Inc()
	}

	s.wg.Add(1)
	go s.run(ctx, state, j)

	s.logger.Info("Anneal job queued", map[string]interface{}{
		"job_id":    state.ID,
		"objective": state.Objective,
		"schedule":  string(state.Schedule),
		"seed":      state.Seed,
	})
	return state.ID, nil
}

// Status returns a snapshot of the job, falling back to the run store for
// jobs that are no longer in memory.
func (s *Server) Status(ctx context.Context, id string) (*StatusResponse, error) {
	s.jobsMu.RLock()
	state, ok := s.jobs[id]
	var resp *StatusResponse
	if ok {
		resp = newStatusResponse(state)
	}
	s.jobsMu.RUnlock()
	if ok {
		return resp, nil
	}

	if s.store != nil {
		run, err := s.store.Get(ctx, id)
		if err == nil {
			return statusFromRun(run), nil
		}
		if !apperrors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Wrap(err, "read run").WithOperation("status")
		}
	}
	return nil, apperrors.NotFound(nil, "job not found").WithOperation("status")
}

// Cancel requests cancellation of a pending or running job.
func (s *Server) Cancel(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, ok := s.jobs[id]
	if !ok {
		return apperrors.NotFound(nil, "job not found").WithOperation("cancel")
	}
	switch state.State {
	case StateCompleted, StateFailed, StateCancelled:
		return apperrors.Conflict(nil, "cannot cancel job with state: "+state.State).WithOperation("cancel")
	}

	if state.optimizer != nil {
		state.optimizer.Stop()
	}
	state.cancel()
	state.LastUpdated = time.Now()

	s.logger.Info("Anneal job cancellation requested", map[string]interface{}{
		"job_id": id,
	})
	return nil
}

// Runs lists persisted runs, most recent first.
func (s *Server) Runs(ctx context.Context, limit int) ([]RunResponse, error) {
	if s.store == nil {
		return []RunResponse{}, nil
	}
	runs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "list runs").WithOperation("runs")
	}
	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, newRunResponse(r))
	}
	return out, nil
}

// run waits for a worker slot and executes the job.
func (s *Server) run(ctx context.Context, state *JobState, j *job) {
	defer s.wg.Done()
	defer state.cancel()

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		s.finish(state, j, nil, nil)
		return
	}
	defer func() { <-s.slots }()

	s.jobsMu.Lock()
	state.State = StateRunning
	state.LastUpdated = time.Now()
	s.jobsMu.Unlock()

	if s.metrics != nil {
		s.metrics.JobsRunning.Inc()
		defer s.metrics.JobsRunning.Dec()
	}

	jobLogger := s.logger.WithFields(map[string]interface{}{"job_id": state.ID})
	opts := j.opts
	opts.Disp = true
	opts.Logger = logging.NewZapLogger(jobLogger)

	var optimizer *anneal.Optimizer
	opts.Hook = func(p anneal.Progress) {
		best := optimizer.GetBestSolution()
		s.jobsMu.Lock()
		defer s.jobsMu.Unlock()
		state.Progress = float64(p.Iters) / float64(opts.MaxIter)
		state.Best = best
		state.FEval = p.FEval
		state.LastUpdated = time.Now()
	}

	optimizer, err := anneal.NewOptimizer(opts)
	if err != nil {
		s.finish(state, j, nil, err)
		return
	}
	s.jobsMu.Lock()
	state.optimizer = optimizer
	s.jobsMu.Unlock()

	start := time.Now()
	_, err = optimizer.Optimize(ctx, optimization.OptimizerConfig{
		Objective: j.fn.Objective(),
		X0:        j.x0,
	})
	if s.metrics != nil {
		s.metrics.JobDuration.WithLabelValues(string(opts.Schedule)).Observe(time.Since(start).Seconds())
	}
	s.finish(state, j, optimizer.Result(), err)
}

// finish records the outcome in memory, metrics and the run store.
func (s *Server) finish(state *JobState, j *job, res *anneal.Result, err error) {
	now := time.Now()

	s.jobsMu.Lock()
	switch {
	case err != nil:
		state.State = StateFailed
		state.Err = err.Error()
	case res == nil || res.Status == anneal.StatusCancelled:
		state.State = StateCancelled
	default:
		state.State = StateCompleted
	}
	if res != nil {
		state.Result = res
		state.Best = &optimization.Solution{Parameters: res.XMin, Value: res.JMin}
		state.FEval = res.FEval
		state.Progress = float64(res.Iters) / float64(j.opts.MaxIter)
	}
	state.EndTime = &now
	state.LastUpdated = now
	final := state.State
	s.jobsMu.Unlock()

	fields := map[string]interface{}{"job_id": state.ID, "state": final}
	cause := "none"
	if res != nil {
		cause = res.Cause.String()
		fields["status"] = int(res.Status)
		fields["j_min"] = res.JMin
		fields["feval"] = res.FEval
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Error("Anneal job failed", fields)
	} else {
		s.logger.Info("Anneal job finished", fields)
	}

	if s.metrics != nil {
		s.metrics.JobsFinished.WithLabelValues(final, cause).Inc()
		if res != nil {
			s.metrics.Evaluations.WithLabelValues(state.Objective).Add(float64(res.FEval))
		}
	}

	if s.store != nil && res != nil {
		run := store.Run{
			ID:         state.ID,
			Objective:  state.Objective,
			Schedule:   string(state.Schedule),
			Status:     int(res.Status),
			Cause:      int(res.Cause),
			Message:    res.Message,
			JMin:       res.JMin,
			XMin:       res.XMin,
			T:          res.T,
			FEval:      res.FEval,
			Iters:      res.Iters,
			Accept:     res.Accept,
			Seed:       state.Seed,
			StartedAt:  state.StartTime,
			FinishedAt: now,
		}
		if err := s.store.Save(context.Background(), run); err != nil {
			s.logger.Error("Failed to persist run", map[string]interface{}{
				"job_id": state.ID,
				"error":  err.Error(),
			})
		}
	}
}

// Close cancels every job and waits for them to finish.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	for _, state := range s.jobs {
		state.cancel()
	}
	s.jobsMu.Unlock()

	s.wg.Wait()
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	apperrors.WriteJSON(w, s.logger.WithFields(nil), err)
}

// handleStart handles POST /api/v1/anneal
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.BadRequest(err, "invalid request body"))
		return
	}

	id, err := s.Start(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": StatePending})
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel handles DELETE /api/v1/anneal/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Cancel(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// handleRuns handles GET /api/v1/runs?limit=N
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, apperrors.BadRequest(err, "invalid limit"))
			return
		}
		limit = n
	}

	runs, err := s.Runs(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
