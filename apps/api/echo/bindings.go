package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/progress"
	assessmentsvc "github.com/trezcool/ilmlab/services/assessment"
)

const elementsParam = "elements"

type (
	TaskRequest struct {
		Task        assessmentsvc.Task `json:"task"`
		FinalParams map[string]float64 `json:"finalParams"`
		TimeTaken   float64            `json:"timeTaken" validate:"gte=0"`
	}

	TaskResponse struct {
		Applied     bool                  `json:"applied"`
		Status      progress.TaskStatus   `json:"status"`
		Unlocked    *progress.Achievement `json:"unlocked,omitempty"`
		XPAwarded   progress.Points       `json:"xpAwarded"`
		Score       progress.Points       `json:"score"`
		Explanation string                `json:"explanation"`
		Record      progress.UserRecord   `json:"record"`
	}

	EnrollResponse struct {
		Created bool                `json:"created"`
		Record  progress.UserRecord `json:"record"`
	}

	ProfileResponse struct {
		Record       progress.UserRecord    `json:"record"`
		Achievements progress.CatalogStatus `json:"achievements"`
	}

	SessionResponse struct {
		Record          progress.UserRecord `json:"record"`
		RepairedLessons []string            `json:"repairedLessons"`
		XPCorrected     bool                `json:"xpCorrected"`
		StreakChanged   bool                `json:"streakChanged"`
	}
)

func (tr *TaskRequest) Validate(validate *validator.Validate) error {
	tr.Task.Type = core.CleanString(tr.Task.Type)
	tr.Task.Instructions = core.CleanString(tr.Task.Instructions)
	return validate.Struct(tr)
}

// bindElements reads the `elements` query param, a comma separated list of element symbols.
func bindElements(ctx echo.Context) ([]string, error) {
	elements := core.SplitList(ctx.QueryParam(elementsParam))
	if len(elements) == 0 {
		return nil, errElementsRequired
	}
	return elements, nil
}
