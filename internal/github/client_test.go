package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient("test-token").WithBaseURL(srv.URL), srv
}

func TestFetchUserInfo(t *testing.T) {
	var gotAuth string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(User{Login: "alice", Name: "Alice"})
	}))
	defer srv.Close()

	user, err := c.FetchUserInfo(context.Background())
	if err != nil {
		t.Fatalf("FetchUserInfo failed: %v", err)
	}
	if user.Login != "alice" {
		t.Errorf("Login = %q, want alice", user.Login)
	}
	if gotAuth != "token test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	}))
	defer srv.Close()

	_, err := c.FetchUserInfo(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want AuthError", err)
	}
	if authErr.Status != http.StatusUnauthorized || authErr.Message != "Bad credentials" {
		t.Errorf("AuthError = %+v", authErr)
	}
}

func TestRateLimitExhaustionMapsToRateLimitError(t *testing.T) {
	reset := time.Now().Add(time.Hour).Unix()
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
	}))
	defer srv.Close()

	_, err := c.FetchRepositories(context.Background())
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("got %v, want RateLimitError", err)
	}
	if !rlErr.Reset.Equal(time.Unix(reset, 0)) {
		t.Errorf("Reset = %v, want %v", rlErr.Reset, time.Unix(reset, 0))
	}
	if !c.IsRateLimited() {
		t.Error("IsRateLimited should report true until the reset time")
	}
}

func TestForbiddenWithBudgetMapsToAuthError(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Resource not accessible"}`)
	}))
	defer srv.Close()

	_, err := c.FetchRepositories(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want AuthError for a 403 with budget left", err)
	}
}

func TestNotFoundAndConflictMapping(t *testing.T) {
	status := http.StatusNotFound
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"message":"whatever"}`)
	}))
	defer srv.Close()
	ctx := context.Background()

	_, err := c.GetFileSHA(ctx, "alice/project", "missing.txt", "main")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("404: got %v, want NotFoundError", err)
	}

	status = http.StatusConflict
	_, err = c.CreateOrUpdateFile(ctx, "alice/project", "a.txt", "x", "msg", "main", "stale")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Errorf("409: got %v, want ConflictError", err)
	}

	status = http.StatusUnprocessableEntity
	_, err = c.CreateOrUpdateFile(ctx, "alice/project", "a.txt", "x", "msg", "main", "")
	if !errors.As(err, &conflict) {
		t.Errorf("422: got %v, want ConflictError", err)
	}
}

func TestFetchRepositoriesPagination(t *testing.T) {
	pageOne := make([]Repository, 100)
	for i := range pageOne {
		pageOne[i] = Repository{FullName: fmt.Sprintf("alice/repo-%d", i)}
	}
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			json.NewEncoder(w).Encode(pageOne)
		case "2":
			json.NewEncoder(w).Encode([]Repository{{FullName: "alice/last"}})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
			json.NewEncoder(w).Encode([]Repository{})
		}
	}))
	defer srv.Close()

	repos, err := c.FetchRepositories(context.Background())
	if err != nil {
		t.Fatalf("FetchRepositories failed: %v", err)
	}
	if len(repos) != 101 {
		t.Errorf("got %d repositories, want 101", len(repos))
	}
	if repos[100].FullName != "alice/last" {
		t.Errorf("last repo = %q", repos[100].FullName)
	}
}

func TestFetchBranches(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/alice/project/branches" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `[{"name":"main","protected":true,"commit":{"sha":"abc123"}}]`)
	}))
	defer srv.Close()

	branches, err := c.FetchBranches(context.Background(), "alice/project")
	if err != nil {
		t.Fatalf("FetchBranches failed: %v", err)
	}
	if len(branches) != 1 || branches[0].Name != "main" || branches[0].Commit.SHA != "abc123" {
		t.Errorf("branches = %+v", branches)
	}
}

func TestFetchFileContentBase64(t *testing.T) {
	// GitHub wraps base64 bodies with newlines; the decoder must strip them.
	encoded := base64.StdEncoding.EncodeToString([]byte("package main\n\nfunc main() {}\n"))
	wrapped := encoded[:10] + "\n" + encoded[10:]
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"encoding": "base64",
			"content":  wrapped,
			"sha":      "abc",
		})
	}))
	defer srv.Close()

	content, ok, err := c.FetchFileContent(context.Background(), "alice/project", "main.go", "main")
	if err != nil {
		t.Fatalf("FetchFileContent failed: %v", err)
	}
	if !ok {
		t.Fatal("ok = false for a regular file")
	}
	if content != "package main\n\nfunc main() {}\n" {
		t.Errorf("content = %q", content)
	}
}

func TestFetchFileContentNonFile(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"type": "symlink", "content": ""})
	}))
	defer srv.Close()

	_, ok, err := c.FetchFileContent(context.Background(), "alice/project", "link", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("ok = true for a symlink")
	}
}

func TestFetchDirectoryListingRejectsFileBody(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A file path returns an object, not an array.
		fmt.Fprint(w, `{"type":"file","name":"a.txt"}`)
	}))
	defer srv.Close()

	_, err := c.FetchDirectoryListing(context.Background(), "alice/project", "a.txt", "main")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("got %v, want NotFoundError for a non-directory listing", err)
	}
}

func TestCreateOrUpdateFilePayload(t *testing.T) {
	var got fileUploadRequest
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/repos/alice/project/contents/src/main.go" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		fmt.Fprint(w, `{"content":{"sha":"new-sha"}}`)
	}))
	defer srv.Close()

	newSHA, err := c.CreateOrUpdateFile(context.Background(),
		"alice/project", "src/main.go", "package main", "update main", "main", "old-sha")
	if err != nil {
		t.Fatalf("CreateOrUpdateFile failed: %v", err)
	}
	if newSHA != "new-sha" {
		t.Errorf("newSHA = %q", newSHA)
	}
	if got.Message != "update main" || got.SHA != "old-sha" || got.Branch != "main" {
		t.Errorf("payload = %+v", got)
	}
	decoded, err := base64.StdEncoding.DecodeString(got.Content)
	if err != nil || string(decoded) != "package main" {
		t.Errorf("payload content = %q (%v)", got.Content, err)
	}
}

func TestCreateOrUpdateFileOmitsEmptySHA(t *testing.T) {
	var raw map[string]any
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		fmt.Fprint(w, `{"content":{"sha":"s"}}`)
	}))
	defer srv.Close()

	if _, err := c.CreateOrUpdateFile(context.Background(),
		"alice/project", "new.txt", "x", "create", "main", ""); err != nil {
		t.Fatalf("CreateOrUpdateFile failed: %v", err)
	}
	if _, present := raw["sha"]; present {
		t.Error("creation payload must omit the sha field entirely")
	}
}

type staticTokenSource struct {
	token    string
	username string
	err      error
}

func (s staticTokenSource) GetToken(ctx context.Context, user string) (string, string, error) {
	return s.token, s.username, s.err
}

func TestResolveToken(t *testing.T) {
	ctx := context.Background()

	t.Setenv("GITHUB_TOKEN", "env-token")
	got, err := ResolveToken(ctx, staticTokenSource{token: "stored"}, "local")
	if err != nil || got != "env-token" {
		t.Errorf("env token: got %q, %v", got, err)
	}

	t.Setenv("GITHUB_TOKEN", "")
	got, err = ResolveToken(ctx, staticTokenSource{token: "stored"}, "local")
	if err != nil || got != "stored" {
		t.Errorf("stored token: got %q, %v", got, err)
	}

	if _, err := ResolveToken(ctx, staticTokenSource{err: errors.New("none")}, "local"); err == nil {
		t.Error("no token anywhere should be an error")
	}
}
