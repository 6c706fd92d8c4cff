package echoapi

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
	"github.com/trezcool/ilmlab/core/progress"
)

var student = identity.Identity{ID: "u1", Email: "ali@test.uz", DisplayName: "Ali"}

func Test_progressApi_enroll(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.tokens, student)

	rec := app.do(newAuthRequest(http.MethodPost, "/v1/users", token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp EnrollResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Created)
	assert.Equal(t, "Ali", resp.Record.DisplayName)
	assert.Equal(t, progress.Points(0), resp.Record.XP)

	stored := app.stored(t, student.ID)
	assert.Equal(t, "ali@test.uz", stored.Email)
	assert.Empty(t, stored.Progress)

	rec = app.do(newAuthRequest(http.MethodPost, "/v1/users", token))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Created)
}

func Test_progressApi_signIn(t *testing.T) {
	app := setup(t)

	t.Run("no record", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPost, "/v1/session", getToken(t, app.tokens, identity.Identity{ID: "ghost"})))
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "no progress record"})}, rec)
	})

	t.Run("reconciles", func(t *testing.T) {
		app.seed(t, student.ID, core.Fields{
			progress.FieldXP:            10,
			progress.FieldStreak:        2,
			progress.FieldLastLoginDate: "2024-03-14",
			progress.FieldProgress:      map[string]interface{}{"l1": map[string]interface{}{"taskCompleted": true}},
		})

		rec := app.do(newAuthRequest(http.MethodPost, "/v1/session", getToken(t, app.tokens, student)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp SessionResponse
		decodeBody(t, rec, &resp)
		assert.True(t, resp.XPCorrected)
		assert.True(t, resp.StreakChanged)
		assert.Equal(t, []string{"l1"}, resp.RepairedLessons)
		assert.Equal(t, progress.Points(100), resp.Record.XP)
		assert.Equal(t, 3, resp.Record.Streak)

		stored := app.stored(t, student.ID)
		assert.Equal(t, progress.Points(100), stored.XP)
		assert.Equal(t, progress.Points(100), stored.Progress["l1"].Score)
		assert.Equal(t, "2024-03-15", stored.LastLoginDate)
	})

	t.Run("sign out", func(t *testing.T) {
		token := getToken(t, app.tokens, student)
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/me", token))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = app.do(newAuthRequest(http.MethodDelete, "/v1/session", token))
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(newAuthRequest(http.MethodGet, "/v1/me", token))
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errNoSessionMsg)}, rec)
	})
}

func Test_progressApi_profile(t *testing.T) {
	app := setup(t)
	rec := progress.NewUserRecord(student.ID, fixedNow)
	rec.Achievements[progress.AchievementFirstDiscovery] = true
	rec.XP = 50
	rec.LastLoginDate = "2024-03-15"
	app.seed(t, student.ID, rec.Fields())
	token := app.signIn(t, student)

	resp := app.do(newAuthRequest(http.MethodGet, "/v1/me", token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var profile ProfileResponse
	decodeBody(t, resp, &profile)
	assert.Equal(t, progress.Points(50), profile.Record.XP)
	assert.Equal(t, 1, profile.Achievements.Unlocked)
	assert.Equal(t, 3, profile.Achievements.Total)
	assert.True(t, profile.Achievements.Achievements[0].Unlocked)
	assert.False(t, profile.Achievements.Achievements[1].Unlocked)
}

func Test_progressApi_videoWatched(t *testing.T) {
	app := setup(t)
	app.seed(t, student.ID, progress.NewUserRecord(student.ID, fixedNow).Fields())
	token := app.signIn(t, student)

	runHTTPTests(t, app, []httpTest{
		{
			name: "invalid lesson", method: http.MethodPost, path: "/v1/lessons/bad$id/video", token: token,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"lessonID": "invalid lesson id"}`),
		},
		{name: "watched", method: http.MethodPost, path: "/v1/lessons/l1/video", token: token, wantCode: http.StatusOK},
		{name: "again", method: http.MethodPost, path: "/v1/lessons/l1/video", token: token, wantCode: http.StatusOK},
	})

	stored := app.stored(t, student.ID)
	require.Contains(t, stored.Progress, "l1")
	assert.True(t, stored.Progress["l1"].VideoWatched)
	assert.False(t, stored.Progress["l1"].TaskCompleted)
	assert.Equal(t, progress.Points(0), stored.Progress["l1"].Score)
}

func Test_progressApi_taskCompleted(t *testing.T) {
	body := []byte(`{"task": {"type": "physics", "instructions": "Reach 10 m/s", "targetValue": 10}, "finalParams": {"speed": 9.5}, "timeTaken": 42}`)

	t.Run("recorded once", func(t *testing.T) {
		app := setup(t)
		app.seed(t, student.ID, progress.NewUserRecord(student.ID, fixedNow).Fields())
		token := app.signIn(t, student)

		rec := app.do(newAuthRequest(http.MethodPost, "/v1/lessons/l1/task", token, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp TaskResponse
		decodeBody(t, rec, &resp)
		assert.True(t, resp.Applied)
		assert.Equal(t, progress.TaskRecorded, resp.Status)
		require.NotNil(t, resp.Unlocked)
		assert.Equal(t, progress.AchievementFirstDiscovery, resp.Unlocked.ID)
		assert.Equal(t, progress.Points(130), resp.XPAwarded)
		assert.Equal(t, progress.Points(80), resp.Score)
		assert.Equal(t, "Good", resp.Explanation)
		assert.Equal(t, progress.Points(130), resp.Record.XP)

		stored := app.stored(t, student.ID)
		assert.Equal(t, progress.Points(130), stored.XP)
		assert.True(t, stored.HasAchievement(progress.AchievementFirstDiscovery))
		assert.Equal(t, []string{progress.AchievementFirstDiscovery}, stored.Badges)

		rec = app.do(newAuthRequest(http.MethodPost, "/v1/lessons/l1/task", token, body))
		require.Equal(t, http.StatusOK, rec.Code)
		decodeBody(t, rec, &resp)
		assert.False(t, resp.Applied)
		assert.Equal(t, progress.TaskAlreadyCompleted, resp.Status)
		assert.Nil(t, resp.Unlocked)
		assert.Equal(t, progress.Points(80), resp.Score)
		assert.Equal(t, progress.Points(130), resp.Record.XP)
		assert.Equal(t, 1, app.grader.calls)
	})

	t.Run("perfect score", func(t *testing.T) {
		app := setup(t)
		app.grader.result = progress.AssessmentResult{Score: 100}
		app.seed(t, student.ID, progress.NewUserRecord(student.ID, fixedNow).Fields())
		token := app.signIn(t, student)

		rec := app.do(newAuthRequest(http.MethodPost, "/v1/lessons/l1/task", token, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		stored := app.stored(t, student.ID)
		assert.Equal(t, progress.Points(250), stored.XP)
		assert.True(t, stored.HasAchievement(progress.AchievementQuizMaster))
	})

	t.Run("grading failure", func(t *testing.T) {
		app := setup(t)
		app.grader.err = errors.New("quota exceeded")
		app.seed(t, student.ID, progress.NewUserRecord(student.ID, fixedNow).Fields())
		token := app.signIn(t, student)

		rec := app.do(newAuthRequest(http.MethodPost, "/v1/lessons/l1/task", token, body))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadGateway,
			wantData: marshalObj(t, httpErr{Error: "task could not be graded, try again"}),
		}, rec)
		assert.Empty(t, app.stored(t, student.ID).Progress)
	})

	t.Run("validation", func(t *testing.T) {
		app := setup(t)
		app.seed(t, student.ID, progress.NewUserRecord(student.ID, fixedNow).Fields())
		token := app.signIn(t, student)

		runHTTPTests(t, app, []httpTest{
			{
				name: "task type required", method: http.MethodPost, path: "/v1/lessons/l1/task", token: token,
				body: []byte(`{"task": {"type": "  "}}`), wantCode: http.StatusBadRequest,
				wantData: []byte(`{"type": "this field is required"}`),
			},
			{
				name: "negative time", method: http.MethodPost, path: "/v1/lessons/l1/task", token: token,
				body: []byte(`{"task": {"type": "chemistry"}, "timeTaken": -1}`), wantCode: http.StatusBadRequest,
			},
			{
				name: "invalid lesson", method: http.MethodPost, path: "/v1/lessons/bad$id/task", token: token,
				body: body, wantCode: http.StatusBadRequest, wantData: []byte(`{"lessonID": "invalid lesson id"}`),
			},
		})
		assert.Zero(t, app.grader.calls)
	})
}

func Test_progressApi_leaderboard(t *testing.T) {
	app := setup(t)
	for id, xp := range map[string]float64{"a": 300, "b": 150, student.ID: 200} {
		rec := progress.NewUserRecord(id, fixedNow)
		rec.XP = progress.Points(xp)
		if id == student.ID {
			rec.DisplayName = student.DisplayName
		}
		app.seed(t, id, rec.Fields())
	}

	want := progress.Leaderboard{
		Standings: []progress.Standing{
			{Rank: 1, UserID: "a", DisplayName: "Anonymous", XP: 300},
			{Rank: 2, UserID: student.ID, DisplayName: "Ali", XP: 200},
			{Rank: 3, UserID: "b", DisplayName: "Anonymous", XP: 150},
		},
		ViewerRank: 2,
		Limit:      app.conf.Progress.LeaderboardLimit,
	}
	runHTTPTests(t, app, []httpTest{
		{name: "viewer listed", path: "/v1/leaderboard", token: getToken(t, app.tokens, student), wantCode: http.StatusOK, wantData: marshalObj(t, want)},
	})

	rankless := newTestApp(t, true)
	runHTTPTests(t, rankless, []httpTest{
		{
			name: "ranking unsupported", path: "/v1/leaderboard", token: getToken(t, rankless.tokens, student),
			wantCode: http.StatusNotImplemented, wantData: marshalObj(t, httpErr{Error: "leaderboard not available on this store"}),
		},
	})
}
