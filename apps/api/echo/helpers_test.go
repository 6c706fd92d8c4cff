package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
	"github.com/trezcool/ilmlab/core/progress"
	"github.com/trezcool/ilmlab/core/reaction"
	assessmentsvc "github.com/trezcool/ilmlab/services/assessment"
	metricsvc "github.com/trezcool/ilmlab/services/metrics"
	inmemdb "github.com/trezcool/ilmlab/storage/database/inmem"
	testutil "github.com/trezcool/ilmlab/tests"
)

var (
	fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNoSessionMsg = httpErr{Error: "no active session, sign in first"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type fakeGrader struct {
	result progress.AssessmentResult
	err    error
	calls  int
}

func (g *fakeGrader) Grade(context.Context, assessmentsvc.Task, map[string]float64, float64) (progress.AssessmentResult, error) {
	g.calls++
	return g.result, g.err
}

type testApp struct {
	Server
	conf    *core.Config
	store   *testutil.FlakyStore
	logger  *testutil.Logger
	grader  *fakeGrader
	tokens  *identity.TokenIssuer
	metrics *metricsvc.Metrics
}

func setup(t *testing.T) *testApp { return newTestApp(t, false) }

// newTestApp builds a server over an in-memory store. A rankless store cannot serve the leaderboard.
func newTestApp(t *testing.T, rankless bool) *testApp {
	t.Helper()

	conf := core.NewTestConfig()
	app := &testApp{
		conf:    conf,
		store:   &testutil.FlakyStore{DocumentStore: inmemdb.NewDocumentStore()},
		logger:  new(testutil.Logger),
		grader:  &fakeGrader{result: progress.AssessmentResult{Score: 80, Explanation: "Good", Confidence: 0.8}},
		tokens:  identity.NewTokenIssuer(conf),
		metrics: metricsvc.New(false),
	}

	var ledgerStore core.DocumentStore = app.store
	if rankless {
		ledgerStore = struct{ core.DocumentStore }{app.store}
	}
	ledger := progress.NewLedger(conf, progress.LedgerDeps{
		Store:   ledgerStore,
		Logger:  app.logger,
		Metrics: app.metrics,
		Clock:   func() time.Time { return fixedNow },
	})
	hub := identity.NewHub()
	sessions := progress.NewSessions(ledger, app.logger)
	t.Cleanup(sessions.Subscribe(hub))

	validate, translator := core.NewValidator()
	app.Server = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     app.logger,
		Ledger:     ledger,
		Sessions:   sessions,
		Hub:        hub,
		Tokens:     app.tokens,
		Grader:     app.grader,
		Reactions:  reaction.DefaultCatalog(),
		Metrics:    app.metrics,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func (app *testApp) seed(t *testing.T, id string, fields core.Fields) {
	t.Helper()
	testutil.SeedDocument(t, app.store.DocumentStore, app.conf.Progress.UsersCollection, id, fields)
}

func (app *testApp) stored(t *testing.T, id string) progress.UserRecord {
	t.Helper()
	doc := testutil.GetDocument(t, app.store.DocumentStore, app.conf.Progress.UsersCollection, id)
	rec, err := progress.DecodeRecord(doc)
	require.NoError(t, err)
	return rec
}

func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.ServeHTTP(rec, req)
	return rec
}

// signIn opens a session for the user and returns their token.
func (app *testApp) signIn(t *testing.T, idt identity.Identity) string {
	t.Helper()
	token := getToken(t, app.tokens, idt)
	rec := app.do(newAuthRequest(http.MethodPost, "/v1/session", token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, tokens *identity.TokenIssuer, idt identity.Identity) string {
	token, err := tokens.Issue(idt)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(newAuthRequest(method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}
