package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
	"github.com/trezcool/ilmlab/core/progress"
	assessmentsvc "github.com/trezcool/ilmlab/services/assessment"
)

type (
	progressDeps struct {
		ledger   *progress.Ledger
		sessions *progress.Sessions
		hub      *identity.Hub
		grader   assessmentsvc.Grader
		validate *validator.Validate
	}

	progressApi struct {
		progressDeps
	}
)

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps progressDeps) {
	api := progressApi{deps}

	// authed endpoints
	ag := g.Group("", jwt)
	ag.POST("/users", api.enroll)
	ag.POST("/session", api.signIn)
	ag.DELETE("/session", api.signOut)
	ag.GET("/leaderboard", api.leaderboard)

	// session endpoints
	sg := ag.Group("", sessionMiddleware(api.sessions))
	sg.GET("/me", api.profile)

	lg := sg.Group("/lessons/:lessonID", lessonIDMiddleware)
	lg.POST("/video", api.videoWatched)
	lg.POST("/task", api.taskCompleted)
}

func lessonIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !core.ValidLessonID(ctx.Param("lessonID")) {
			return errInvalidLessonID
		}
		return next(ctx)
	}
}

// Handlers

func (api *progressApi) enroll(ctx echo.Context) error {
	idt, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	rec, created, err := api.ledger.Enroll(ctx.Request().Context(), idt)
	if err != nil {
		return errors.Wrap(err, "enrolling user")
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, EnrollResponse{Created: created, Record: rec})
}

func (api *progressApi) signIn(ctx echo.Context) error {
	idt, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	api.hub.SignIn(idt)
	sess, err := api.sessions.Get(idt.ID)
	if err != nil {
		return err
	}

	recon := sess.Reconciliation()
	repaired := recon.RepairedLessons
	if repaired == nil {
		repaired = []string{}
	}
	return ctx.JSON(http.StatusOK, SessionResponse{
		Record:          sess.Record(),
		RepairedLessons: repaired,
		XPCorrected:     recon.XPCorrected,
		StreakChanged:   recon.StreakChanged,
	})
}

func (api *progressApi) signOut(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	api.hub.SignOut(claims.Subject)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *progressApi) profile(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	rec := sess.Record()
	return ctx.JSON(http.StatusOK, ProfileResponse{
		Record:       rec,
		Achievements: api.ledger.Catalog().Status(rec),
	})
}

func (api *progressApi) videoWatched(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	rec := sess.RecordVideoWatched(ctx.Request().Context(), ctx.Param("lessonID"))
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressApi) taskCompleted(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	lessonID := ctx.Param("lessonID")

	var data TaskRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TaskRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// a scored task is never graded again
	var result progress.AssessmentResult
	if !sess.Record().Progress[lessonID].TaskCompleted {
		result, err = api.grader.Grade(ctx.Request().Context(), data.Task, data.FinalParams, data.TimeTaken)
		if err != nil {
			ctx.Logger().Warnf("grading %s: %v", lessonID, err)
			return &echo.HTTPError{Code: errGradingFailed.Code, Message: errGradingFailed.Message, Internal: err}
		}
	}

	out := sess.RecordTaskCompleted(ctx.Request().Context(), lessonID, result)
	resp := TaskResponse{
		Applied:   out.Applied(),
		Status:    out.Status,
		Unlocked:  out.Unlocked,
		XPAwarded: out.XPAwarded,
		Record:    out.Record,
	}
	if out.Applied() {
		resp.Score = out.Record.Progress[lessonID].Score
		resp.Explanation = result.Explanation
	} else {
		resp.Score = sess.Record().Progress[lessonID].Score
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *progressApi) leaderboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	board, err := api.ledger.Leaderboard(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "building leaderboard")
	}
	return ctx.JSON(http.StatusOK, board)
}
