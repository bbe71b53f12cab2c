package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	appErr "korobok/pkg/errors"
)

// maxReportBytes bounds what the launcher reads from the report pipe.
const maxReportBytes = 64 * 1024

// failureReport is how the container side hands its error to the launcher.
type failureReport struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Stage   string                 `json:"stage,omitempty"`
	Step    string                 `json:"step,omitempty"`
	Cause   string                 `json:"cause,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeReport(w io.Writer, err error) error {
	rep := failureReport{Code: int(appErr.GetCode(err)), Message: err.Error()}
	if e := appErr.GetError(err); e != nil {
		rep.Message = e.Message
		rep.Stage = e.Stage()
		rep.Step = e.Step()
		rep.Details = chainDetails(err)
		if e.Err != nil {
			rep.Cause = e.Err.Error()
		}
	}
	if rep.Stage == "" {
		rep.Stage = stageContainer
	}
	return json.NewEncoder(w).Encode(rep)
}

// chainDetails merges the details of every coded error in err's chain. Outer
// errors win on conflicting keys.
func chainDetails(err error) map[string]interface{} {
	var layers []map[string]interface{}
	for ; err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*appErr.Error); ok && len(e.Details) > 0 {
			layers = append(layers, e.Details)
		}
	}
	if len(layers) == 0 {
		return nil
	}
	out := make(map[string]interface{})
	for i := len(layers) - 1; i >= 0; i-- {
		for k, v := range layers[i] {
			out[k] = v
		}
	}
	return out
}

// readReport returns nil when the container side exited without reporting.
func readReport(r io.Reader) (*appErr.Error, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxReportBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var rep failureReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode container report: %w", err)
	}
	out := appErr.Newf(appErr.ErrorCode(rep.Code), "%s", rep.Message)
	for k, v := range rep.Details {
		out.WithDetail(k, v)
	}
	out.WithDetail(appErr.DetailStage, rep.Stage)
	out.WithDetail(appErr.DetailStep, rep.Step)
	if rep.Cause != "" {
		out.Err = remoteCause(rep.Cause)
	}
	return out, nil
}

// remoteCause carries the text of an error raised in another process.
type remoteCause string

func (c remoteCause) Error() string { return string(c) }
