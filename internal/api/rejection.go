package api

import (
	"fmt"
	"net/http"
)

// Stage names the purchase step that produced an outcome
type Stage string

const (
	StageReplayCheck    Stage = "replay_check"
	StageValidate       Stage = "validate"
	StageRateLookup     Stage = "rate_lookup"
	StageMethodDispatch Stage = "method_dispatch"
	StageVerify         Stage = "verify"
	StageCredit         Stage = "credit"
)

// Rejection is a purchase that ended without a credit. Status is the HTTP
// status to answer with; Reason is the client-facing detail and may be empty.
type Rejection struct {
	Status  int
	Message string
	Reason  string
	Stage   Stage
	Err     error
}

func (r *Rejection) Error() string {
	if r.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", r.Stage, r.Message, r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Stage, r.Message)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func reject(stage Stage, status int, message, reason string) *Rejection {
	return &Rejection{Status: status, Message: message, Reason: reason, Stage: stage}
}

func internalError(stage Stage, err error) *Rejection {
	return &Rejection{
		Status:  http.StatusInternalServerError,
		Message: "Failed to process purchase",
		Stage:   stage,
		Err:     err,
	}
}
