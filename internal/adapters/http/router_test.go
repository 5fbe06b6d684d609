package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

type sessionLifecycleFake struct {
	sessions map[string]domain.Session
	started  []string
	resets   []string
}

func newSessionLifecycleFake() *sessionLifecycleFake {
	return &sessionLifecycleFake{sessions: make(map[string]domain.Session)}
}

func (f *sessionLifecycleFake) Start(threadID string) domain.Session {
	f.started = append(f.started, threadID)
	session := domain.Session{ID: "sess-" + threadID, ThreadID: threadID}
	f.sessions[session.ID] = session
	return session
}

func (f *sessionLifecycleFake) Get(sessionID string) (domain.Session, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (f *sessionLifecycleFake) Reset(sessionID string) {
	f.resets = append(f.resets, sessionID)
}

type questionServiceFake struct {
	lastSessionID string
	lastText      string
	lastOutside   bool
	result        *domain.TurnResult
	err           error
}

func (f *questionServiceFake) Ask(_ context.Context, sessionID, text string, searchOutsideThread bool) (*domain.TurnResult, error) {
	f.lastSessionID = sessionID
	f.lastText = text
	f.lastOutside = searchOutsideThread
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type timelineFake struct {
	timeline string
	err      error
}

func (f *timelineFake) Timeline(string) (string, error) {
	return f.timeline, f.err
}

type corpusStub struct {
	threads []string
}

func (c *corpusStub) Count() int                            { return 0 }
func (c *corpusStub) Record(int) domain.CorpusRecord        { return domain.CorpusRecord{} }
func (c *corpusStub) LexicalScores([]string) []float64      { return nil }
func (c *corpusStub) ThreadIDs() []string                   { return c.threads }
func (c *corpusStub) ThreadMessages(string) []domain.Message { return nil }

type routerFixture struct {
	sessions  *sessionLifecycleFake
	questions *questionServiceFake
	timelines *timelineFake
	handler   http.Handler
}

func newRouterFixture() *routerFixture {
	sessions := newSessionLifecycleFake()
	questions := &questionServiceFake{result: &domain.TurnResult{
		Answer:  "**Answer:**",
		Outcome: domain.OutcomeAnswered,
	}}
	timelines := &timelineFake{timeline: "### Timeline for thread t1"}
	router := NewRouter(sessions, questions, timelines, &corpusStub{threads: []string{"t1", "t2"}}, nil, Options{})
	return &routerFixture{
		sessions:  sessions,
		questions: questions,
		timelines: timelines,
		handler:   router.Handler(),
	}
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthz(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodGet, "/healthz", "")
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestCreateSession(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions", `{"thread_id":"t1"}`)
	if res.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["session_id"] == "" || resp["thread_id"] != "t1" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if len(fx.sessions.started) != 1 || fx.sessions.started[0] != "t1" {
		t.Fatalf("start not forwarded: %v", fx.sessions.started)
	}
}

func TestCreateSessionUnknownThread(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions", `{"thread_id":"nope"}`)
	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d", res.Code)
	}
	if len(fx.sessions.started) != 0 {
		t.Fatalf("session must not be started for unknown thread")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	fx := newRouterFixture()
	if res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions", `{}`); res.Code != http.StatusBadRequest {
		t.Fatalf("missing thread_id: status = %d", res.Code)
	}
	if res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions", `not json`); res.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d", res.Code)
	}
	if res := doJSON(t, fx.handler, http.MethodGet, "/v1/sessions", ""); res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("bad method: status = %d", res.Code)
	}
}

func TestSwitchThreadAliasesCreate(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/threads/switch", `{"thread_id":"t2"}`)
	if res.Code != http.StatusCreated {
		t.Fatalf("status = %d", res.Code)
	}
	if len(fx.sessions.started) != 1 || fx.sessions.started[0] != "t2" {
		t.Fatalf("switch must start a session: %v", fx.sessions.started)
	}
}

func TestGetSession(t *testing.T) {
	fx := newRouterFixture()
	session := fx.sessions.Start("t1")

	res := doJSON(t, fx.handler, http.MethodGet, "/v1/sessions/"+session.ID, "")
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	var got domain.Session
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != session.ID || got.ThreadID != "t1" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if res := doJSON(t, fx.handler, http.MethodGet, "/v1/sessions/unknown", ""); res.Code != http.StatusNotFound {
		t.Fatalf("unknown session: status = %d", res.Code)
	}
}

func TestResetSession(t *testing.T) {
	fx := newRouterFixture()
	session := fx.sessions.Start("t1")

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/"+session.ID+"/reset", "")
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	if len(fx.sessions.resets) != 1 || fx.sessions.resets[0] != session.ID {
		t.Fatalf("reset not forwarded: %v", fx.sessions.resets)
	}

	// Unknown sessions get 404 at the transport even though the store
	// reset is a silent no-op.
	res = doJSON(t, fx.handler, http.MethodPost, "/v1/sessions/unknown/reset", "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("unknown session reset: status = %d", res.Code)
	}
	if len(fx.sessions.resets) != 1 {
		t.Fatalf("reset must not reach the store for unknown sessions")
	}
}

func TestListThreads(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodGet, "/v1/threads", "")
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	var resp map[string][]string
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp["threads"]) != 2 || resp["threads"][0] != "t1" {
		t.Fatalf("threads = %v", resp["threads"])
	}
}

func TestTimeline(t *testing.T) {
	fx := newRouterFixture()
	session := fx.sessions.Start("t1")

	res := doJSON(t, fx.handler, http.MethodGet, "/v1/sessions/"+session.ID+"/timeline", "")
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp["timeline"], "### Timeline") {
		t.Fatalf("timeline = %q", resp["timeline"])
	}

	fx.timelines.err = domain.ErrSessionNotFound
	if res := doJSON(t, fx.handler, http.MethodGet, "/v1/sessions/unknown/timeline", ""); res.Code != http.StatusNotFound {
		t.Fatalf("unknown session timeline: status = %d", res.Code)
	}
}

func TestAskForwardsAndReturnsTurn(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/ask", `{"session_id":"s1","text":"who approved?"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}
	if fx.questions.lastSessionID != "s1" || fx.questions.lastText != "who approved?" {
		t.Fatalf("ask not forwarded: %+v", fx.questions)
	}
	if fx.questions.lastOutside {
		t.Fatalf("search_outside_thread should default to false")
	}

	var resp map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["answer"] != "**Answer:**" {
		t.Fatalf("answer = %v", resp["answer"])
	}
}

func TestAskQueryFlagWidensBodyFlag(t *testing.T) {
	fx := newRouterFixture()

	doJSON(t, fx.handler, http.MethodPost, "/v1/ask?search_outside_thread=true", `{"session_id":"s1","text":"q"}`)
	if !fx.questions.lastOutside {
		t.Fatalf("query flag must enable outside search")
	}

	doJSON(t, fx.handler, http.MethodPost, "/v1/ask?search_outside_thread=false", `{"session_id":"s1","text":"q","search_outside_thread":true}`)
	if !fx.questions.lastOutside {
		t.Fatalf("query flag must not narrow the body flag")
	}
}

func TestAskValidationAndErrors(t *testing.T) {
	fx := newRouterFixture()

	if res := doJSON(t, fx.handler, http.MethodPost, "/v1/ask", `{"text":"q"}`); res.Code != http.StatusBadRequest {
		t.Fatalf("missing session_id: status = %d", res.Code)
	}
	if res := doJSON(t, fx.handler, http.MethodPost, "/v1/ask", `{"session_id":"s1","text":"  "}`); res.Code != http.StatusBadRequest {
		t.Fatalf("blank text: status = %d", res.Code)
	}

	fx.questions.err = domain.WrapError(domain.ErrSessionNotFound, "get session", domain.ErrSessionNotFound)
	if res := doJSON(t, fx.handler, http.MethodPost, "/v1/ask", `{"session_id":"gone","text":"q"}`); res.Code != http.StatusNotFound {
		t.Fatalf("unknown session: status = %d", res.Code)
	}

	fx.questions.err = domain.WrapError(domain.ErrTemporary, "embed query", domain.ErrTemporary)
	if res := doJSON(t, fx.handler, http.MethodPost, "/v1/ask", `{"session_id":"s1","text":"q"}`); res.Code != http.StatusServiceUnavailable {
		t.Fatalf("temporary failure: status = %d", res.Code)
	}
}
