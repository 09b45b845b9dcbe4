package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/masomo-fees/apps/api/echo"
	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	inmemdb "github.com/trezcool/masomo-fees/storage/database/inmem"
	"github.com/trezcool/masomo-fees/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errExpiredToken = httpErr{Error: "invalid or expired jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

// testApp is a Server backed by an in-memory ledger.
type testApp struct {
	*Server
	conf    *core.Config
	db      *inmemdb.DB
	repo    fee.Repository
	feeSvc  *fee.Service
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) testApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.Open()
	repo := inmemdb.NewFeeRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	feeSvc := fee.NewService(conf, repo, validate, mailSvc, logger)

	// set up server
	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		FeeSvc:     feeSvc,
		Translator: translator,
	})
	t.Cleanup(func() { _ = srv.Close() })

	return testApp{Server: srv, conf: conf, db: db, repo: repo, feeSvc: feeSvc, mailSvc: mailSvc}
}

// ctx returns a context carrying actor, for direct service calls.
func (app testApp) ctx(actor core.Actor) context.Context {
	return core.ContextWithActor(context.Background(), actor)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	header   http.Header
	wantCode int
	wantData []byte // not checked when nil
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

func (app testApp) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	for k, vals := range tt.header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, conf *core.Config, actor core.Actor) string {
	token, err := GenerateToken(GetActorClaims(actor, conf), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshallObj() failed: %v; body %s", err, rec.Body.String())
	}
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
	assert.Equal(t, tt.wantCode, rec.Code, "failed! code; body %s", rec.Body.String())
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
