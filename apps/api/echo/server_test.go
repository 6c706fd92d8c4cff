package echoapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/ilmlab/core/identity"
	"github.com/trezcool/ilmlab/core/progress"
	"github.com/trezcool/ilmlab/core/reaction"
)

func TestServer_home(t *testing.T) {
	app := setup(t)
	rec := app.do(newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to IlmLab API!", rec.Body.String())
}

func TestServer_catalogs(t *testing.T) {
	app := setup(t)
	reactions := reaction.DefaultCatalog()

	runHTTPTests(t, app, []httpTest{
		{
			name: "achievements", path: "/v1/achievements", wantCode: http.StatusOK,
			wantData: marshalObj(t, progress.DefaultCatalog().All()),
		},
		{
			name: "water", path: "/v1/reactions?elements=O,H", wantCode: http.StatusOK,
			wantData: marshalObj(t, reactions.Lookup([]string{"H", "O"})),
		},
		{
			name: "no reaction", path: "/v1/reactions?elements=He,Ne", wantCode: http.StatusOK,
			wantData: marshalObj(t, reaction.NoReaction()),
		},
		{
			name: "elements required", path: "/v1/reactions?elements=,", wantCode: http.StatusBadRequest,
			wantData: []byte(`{"elements": "this field is required"}`),
		},
	})
}

func TestServer_auth(t *testing.T) {
	app := setup(t)
	otherKey := *app.conf
	otherKey.SecretKey = "other"
	forged := getToken(t, identity.NewTokenIssuer(&otherKey), identity.Identity{ID: "u1"})

	runHTTPTests(t, app, []httpTest{
		{name: "missing token", path: "/v1/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "forged token", path: "/v1/me", token: forged, wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "no session", path: "/v1/me", token: getToken(t, app.tokens, identity.Identity{ID: "u1"}),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errNoSessionMsg),
		},
		{name: "leaderboard needs auth", path: "/v1/leaderboard", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
	})
}

func TestServer_metrics(t *testing.T) {
	app := setup(t)
	idt := identity.Identity{ID: "u1"}
	app.seed(t, idt.ID, progress.NewUserRecord(idt.ID, fixedNow).Fields())
	token := app.signIn(t, idt)
	app.do(newAuthRequest(http.MethodPost, "/v1/lessons/l1/task", token, []byte(`{"task": {"type": "physics"}}`)))

	rec := app.do(newRequest(http.MethodGet, "/metrics"))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ilmlab_progress_tasks_total{status="recorded"} 1`)
	assert.Contains(t, body, `ilmlab_progress_achievements_unlocked_total{achievement="first_discovery"} 1`)
	assert.Contains(t, body, `ilmlab_progress_reconciliations_total{outcome="repaired"} 1`)
	assert.True(t, strings.Contains(body, `route="/v1/session"`))
}
