package server

import (
	"time"

	"github.com/copyleftdev/anneal/internal/optimization/anneal"
	"github.com/copyleftdev/anneal/internal/store"
)

// SolutionResponse is a point and its objective value.
type SolutionResponse struct {
	Parameters []float64 `json:"parameters"`
	Value      float64   `json:"value"`
}

// ResultResponse carries the diagnostics of a finished run.
type ResultResponse struct {
	XMin     []float64 `json:"x_min"`
	JMin     float64   `json:"j_min"`
	T        float64   `json:"t"`
	FEval    int       `json:"feval"`
	Iters    int       `json:"iters"`
	Accept   int       `json:"accept"`
	Status   int       `json:"status"`
	Cause    string    `json:"cause"`
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Polished bool      `json:"polished,omitempty"`
}

// StatusResponse describes a job in memory or a persisted run.
type StatusResponse struct {
	ID          string            `json:"id"`
	Objective   string            `json:"objective"`
	Schedule    string            `json:"schedule"`
	Seed        uint64            `json:"seed"`
	State       string            `json:"state"`
	Progress    float64           `json:"progress"`
	StartTime   string            `json:"start_time"`
	EndTime     string            `json:"end_time,omitempty"`
	LastUpdated string            `json:"last_update,omitempty"`
	FEval       int               `json:"feval"`
	Best        *SolutionResponse `json:"best_solution,omitempty"`
	Result      *ResultResponse   `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// RunResponse is a persisted run in GET /api/v1/runs.
type RunResponse struct {
	ID         string    `json:"id"`
	Objective  string    `json:"objective"`
	Schedule   string    `json:"schedule"`
	Status     int       `json:"status"`
	Cause      string    `json:"cause"`
	Message    string    `json:"message"`
	JMin       float64   `json:"j_min"`
	XMin       []float64 `json:"x_min"`
	FEval      int       `json:"feval"`
	Iters      int       `json:"iters"`
	Seed       uint64    `json:"seed"`
	StartedAt  string    `json:"started_at"`
	FinishedAt string    `json:"finished_at"`
}

// newStatusResponse must be called with the jobs lock held.
func newStatusResponse(st *JobState) *StatusResponse {
	resp := &StatusResponse{
		ID:          st.ID,
		Objective:   st.Objective,
		Schedule:    string(st.Schedule),
		Seed:        st.Seed,
		State:       st.State,
		Progress:    st.Progress,
		StartTime:   st.StartTime.Format(time.RFC3339),
		LastUpdated: st.LastUpdated.Format(time.RFC3339),
		FEval:       st.FEval,
		Error:       st.Err,
	}
	if st.EndTime != nil {
		resp.EndTime = st.EndTime.Format(time.RFC3339)
	}
	if st.Best != nil {
		resp.Best = &SolutionResponse{
			Parameters: append([]float64(nil), st.Best.Parameters...),
			Value:      st.Best.Value,
		}
	}
	if res := st.Result; res != nil {
		resp.Result = &ResultResponse{
			XMin:     res.XMin,
			JMin:     res.JMin,
			T:        res.T,
			FEval:    res.FEval,
			Iters:    res.Iters,
			Accept:   res.Accept,
			Status:   int(res.Status),
			Cause:    res.Cause.String(),
			Success:  res.Success,
			Message:  res.Message,
			Polished: res.Polished,
		}
	}
	return resp
}

// statusFromRun reconstructs the status of a run that only exists in the
// store.
func statusFromRun(run store.Run) *StatusResponse {
	status, cause := anneal.Status(run.Status), anneal.Status(run.Cause)
	state := StateCompleted
	if status == anneal.StatusCancelled {
		state = StateCancelled
	}
	return &StatusResponse{
		ID:        run.ID,
		Objective: run.Objective,
		Schedule:  run.Schedule,
		Seed:      run.Seed,
		State:     state,
		Progress:  1,
		StartTime: run.StartedAt.Format(time.RFC3339),
		EndTime:   run.FinishedAt.Format(time.RFC3339),
		FEval:     run.FEval,
		Best:      &SolutionResponse{Parameters: run.XMin, Value: run.JMin},
		Result: &ResultResponse{
			XMin:    run.XMin,
			JMin:    run.JMin,
			T:       run.T,
			FEval:   run.FEval,
			Iters:   run.Iters,
			Accept:  run.Accept,
			Status:  run.Status,
			Cause:   cause.String(),
			Success: status.Success(),
			Message: run.Message,
		},
	}
}

func newRunResponse(run store.Run) RunResponse {
	return RunResponse{
		ID:         run.ID,
		Objective:  run.Objective,
		Schedule:   run.Schedule,
		Status:     run.Status,
		Cause:      anneal.Status(run.Cause).String(),
		Message:    run.Message,
		JMin:       run.JMin,
		XMin:       run.XMin,
		FEval:      run.FEval,
		Iters:      run.Iters,
		Seed:       run.Seed,
		StartedAt:  run.StartedAt.Format(time.RFC3339Nano),
		FinishedAt: run.FinishedAt.Format(time.RFC3339Nano),
	}
}
