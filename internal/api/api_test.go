package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/starford/qrdirector/internal/directory"
	"github.com/starford/qrdirector/internal/qr"
	"github.com/starford/qrdirector/internal/testutil"
)

const (
	testBaseURL  = "http://localhost:3000"
	testUser     = "admin"
	testPassword = "hunter2"
)

// testEnv builds the full HTTP surface over an in-memory directory.
// An empty apiToken leaves the JSON API unmounted.
func testEnv(t *testing.T, apiToken string) (*directory.Directory, http.Handler) {
	t.Helper()
	dir, _ := testutil.TestDirectory(t)
	svc := NewService(dir, testutil.TestComposer(t), testBaseURL)

	r := chi.NewRouter()
	Mount(r, RouterConfig{
		Service:    svc,
		Sessions:   sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		Admin:      Credentials{Username: testUser, Password: testPassword},
		APIEnabled: apiToken != "",
		APIToken:   apiToken,
	})
	return dir, r
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, httptest.NewRequest(http.MethodGet, target, nil))
}

func postForm(t *testing.T, h http.Handler, target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return do(t, h, req)
}

func login(t *testing.T, h http.Handler) []*http.Cookie {
	t.Helper()
	rec := postForm(t, h, "/admin/login", url.Values{"username": {testUser}, "password": {testPassword}}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("login status = %d, want 302", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no cookie")
	}
	return cookies
}

func adminGet(t *testing.T, h http.Handler, target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return do(t, h, req)
}

func apiRequest(t *testing.T, h http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, h, req)
}

func assertNoCache(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	want := map[string]string{
		"Cache-Control": "no-store, no-cache, must-revalidate, max-age=0",
		"Pragma":        "no-cache",
		"Expires":       "0",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

// --- Public redirects ---

func TestRedirect_FreshDirectory(t *testing.T) {
	dir, h := testEnv(t, "")
	ctx := context.Background()

	if _, err := dir.Upsert(ctx, "promo", "https://example.com/promo", "Flyer"); err != nil {
		t.Fatal(err)
	}

	rec := get(t, h, "/promo")
	if rec.Code != http.StatusFound {
		t.Fatalf("GET /promo status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://example.com/promo" {
		t.Errorf("Location = %q", loc)
	}
	assertNoCache(t, rec)

	rec = get(t, h, "/")
	if rec.Code != http.StatusFound {
		t.Fatalf("GET / status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != directory.FallbackURL {
		t.Errorf("root Location = %q, want %q", loc, directory.FallbackURL)
	}
	assertNoCache(t, rec)

	rec = get(t, h, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /nope status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "QR code not found") {
		t.Errorf("body = %q", rec.Body.String())
	}
	assertNoCache(t, rec)
}

func TestRedirect_DefaultSlugNotRoutable(t *testing.T) {
	_, h := testEnv(t, "")
	if rec := get(t, h, "/_default"); rec.Code != http.StatusNotFound {
		t.Fatalf("GET /_default status = %d, want 404", rec.Code)
	}
}

func TestRedirect_RootFollowsDefaultEdits(t *testing.T) {
	dir, h := testEnv(t, "")
	if _, err := dir.Upsert(context.Background(), "_default", "https://example.org", "Home"); err != nil {
		t.Fatal(err)
	}
	if loc := get(t, h, "/").Header().Get("Location"); loc != "https://example.org" {
		t.Errorf("Location = %q", loc)
	}
}

func TestRedirect_TargetVerbatim(t *testing.T) {
	dir, h := testEnv(t, "")
	if _, err := dir.Upsert(context.Background(), "bare", "example.com/path?q=1", ""); err != nil {
		t.Fatal(err)
	}
	if loc := get(t, h, "/bare").Header().Get("Location"); loc != "example.com/path?q=1" {
		t.Errorf("Location = %q", loc)
	}
}

func TestRedirect_EncodedSlug(t *testing.T) {
	dir, h := testEnv(t, "")
	ctx := context.Background()
	if _, err := dir.Upsert(ctx, "my promo", "https://example.com/a", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := dir.Upsert(ctx, "a/b", "https://example.com/b", ""); err != nil {
		t.Fatal(err)
	}

	if loc := get(t, h, "/my%20promo").Header().Get("Location"); loc != "https://example.com/a" {
		t.Errorf("space slug Location = %q", loc)
	}
	if loc := get(t, h, "/a%2Fb").Header().Get("Location"); loc != "https://example.com/b" {
		t.Errorf("slash slug Location = %q", loc)
	}
}

func TestRedirect_LiteralPercentSlug(t *testing.T) {
	dir, h := testEnv(t, "")
	ctx := context.Background()
	if _, err := dir.Upsert(ctx, "a%41", "https://example.com/pct", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := dir.Upsert(ctx, "aA", "https://example.com/wrong", ""); err != nil {
		t.Fatal(err)
	}

	rec := get(t, h, "/a%2541")
	if rec.Code != http.StatusFound {
		t.Fatalf("GET /a%%2541 status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://example.com/pct" {
		t.Errorf("Location = %q, want the a%%41 target", loc)
	}
	if loc := get(t, h, "/aA").Header().Get("Location"); loc != "https://example.com/wrong" {
		t.Errorf("GET /aA Location = %q", loc)
	}
}

func TestRedirect_DeletedSlug(t *testing.T) {
	dir, h := testEnv(t, "")
	ctx := context.Background()
	if _, err := dir.Upsert(ctx, "gone", "https://example.com", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := dir.Delete(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	if rec := get(t, h, "/gone"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- Admin UI ---

func TestAdmin_RequiresSession(t *testing.T) {
	_, h := testEnv(t, "")

	for _, target := range []string{"/admin", "/admin/generate-slug", "/admin/qr/promo"} {
		rec := get(t, h, target)
		if rec.Code != http.StatusFound {
			t.Errorf("GET %s status = %d, want 302", target, rec.Code)
			continue
		}
		if loc := rec.Header().Get("Location"); loc != "/admin/login" {
			t.Errorf("GET %s Location = %q", target, loc)
		}
	}

	rec := postForm(t, h, "/admin/save", url.Values{"slug": {"x"}, "url": {"https://x"}}, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin/login" {
		t.Errorf("unauthenticated save: status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestAdmin_LoginPage(t *testing.T) {
	_, h := testEnv(t, "")
	rec := get(t, h, "/admin/login")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="password"`) {
		t.Error("login form missing password field")
	}
}

func TestAdmin_LoginRejectsBadCredentials(t *testing.T) {
	_, h := testEnv(t, "")
	rec := postForm(t, h, "/admin/login", url.Values{"username": {testUser}, "password": {"wrong"}}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Error("expected error message in page")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("failed login must not set a session cookie")
	}
}

func TestAdmin_SessionCookieAttributes(t *testing.T) {
	_, h := testEnv(t, "")
	cookies := login(t, h)
	var c *http.Cookie
	for _, ck := range cookies {
		if ck.Name == SessionName {
			c = ck
		}
	}
	if c == nil {
		t.Fatalf("no %s cookie", SessionName)
	}
	if !c.HttpOnly {
		t.Error("cookie should be HttpOnly")
	}
	if c.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", c.MaxAge)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
}

func TestAdmin_IndexListsLinks(t *testing.T) {
	dir, h := testEnv(t, "")
	if _, err := dir.Upsert(context.Background(), "promo", "https://example.com/promo", "Spring flyer"); err != nil {
		t.Fatal(err)
	}
	cookies := login(t, h)

	rec := adminGet(t, h, "/admin", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"promo", "Spring flyer", directory.FallbackURL} {
		if !strings.Contains(body, want) {
			t.Errorf("admin page missing %q", want)
		}
	}
	assertNoCache(t, rec)
}

func TestAdmin_SaveDeleteFavorite(t *testing.T) {
	dir, h := testEnv(t, "")
	ctx := context.Background()
	cookies := login(t, h)

	rec := postForm(t, h, "/admin/save", url.Values{"slug": {"promo"}, "url": {"https://example.com"}, "name": {"Flyer"}}, cookies)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("save: status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	l, err := dir.Get(ctx, "promo")
	if err != nil || l.URL != "https://example.com" || l.Name != "Flyer" {
		t.Fatalf("after save: %+v, %v", l, err)
	}

	rec = postForm(t, h, "/admin/toggle-favorite", url.Values{"slug": {"promo"}}, cookies)
	if rec.Code != http.StatusFound {
		t.Fatalf("toggle: status=%d", rec.Code)
	}
	if l, _ := dir.Get(ctx, "promo"); !l.Favorite {
		t.Error("expected favorite after toggle")
	}

	rec = postForm(t, h, "/admin/toggle-favorite", url.Values{"slug": {"missing"}}, cookies)
	if rec.Code != http.StatusFound {
		t.Errorf("toggle unknown: status=%d, want 302", rec.Code)
	}

	rec = postForm(t, h, "/admin/delete", url.Values{"slug": {"promo"}}, cookies)
	if rec.Code != http.StatusFound {
		t.Fatalf("delete: status=%d", rec.Code)
	}
	if _, err := dir.Get(ctx, "promo"); err == nil {
		t.Error("promo should be gone")
	}
}

func TestAdmin_SaveRequiresSlugAndURL(t *testing.T) {
	_, h := testEnv(t, "")
	cookies := login(t, h)

	for _, form := range []url.Values{
		{"slug": {"promo"}},
		{"url": {"https://example.com"}},
		{"slug": {"  "}, "url": {"https://example.com"}},
	} {
		rec := postForm(t, h, "/admin/save", form, cookies)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("form %v: status = %d, want 400", form, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), "Slug and URL are required") {
			t.Errorf("form %v: body = %q", form, rec.Body.String())
		}
	}
}

func TestAdmin_DeleteDefaultRejected(t *testing.T) {
	dir, h := testEnv(t, "")
	cookies := login(t, h)

	rec := postForm(t, h, "/admin/delete", url.Values{"slug": {"_default"}}, cookies)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if _, err := dir.Get(context.Background(), "_default"); err != nil {
		t.Error("default link must survive")
	}
}

func TestAdmin_GenerateSlug(t *testing.T) {
	_, h := testEnv(t, "")
	cookies := login(t, h)

	rec := adminGet(t, h, "/admin/generate-slug", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp SlugResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if n := len(resp.Slug); n < 5 || n > 8 {
		t.Errorf("slug %q has length %d", resp.Slug, n)
	}
}

func TestAdmin_QRCode(t *testing.T) {
	dir, h := testEnv(t, "")
	if _, err := dir.Upsert(context.Background(), "promo", "https://example.com", ""); err != nil {
		t.Fatal(err)
	}
	cookies := login(t, h)

	rec := adminGet(t, h, "/admin/qr/promo", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp QRResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.URL != testBaseURL+"/promo" {
		t.Errorf("url = %q", resp.URL)
	}
	if !strings.HasPrefix(resp.QRCode, qr.DataURLPrefix) {
		t.Errorf("qrCode prefix = %.30q", resp.QRCode)
	}

	rec = adminGet(t, h, "/admin/qr/nope", cookies)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown slug status = %d, want 404", rec.Code)
	}
	var errResp errResponse
	_ = json.NewDecoder(rec.Body).Decode(&errResp)
	if errResp.Error != "link not found" {
		t.Errorf("error = %q", errResp.Error)
	}
}

func TestAdmin_Logout(t *testing.T) {
	_, h := testEnv(t, "")
	cookies := login(t, h)

	rec := adminGet(t, h, "/admin/logout", cookies)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin/login" {
		t.Fatalf("logout: status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionName && c.MaxAge >= 0 {
			t.Errorf("session cookie not expired: MaxAge=%d", c.MaxAge)
		}
	}
}

// --- JSON API ---

func TestAPI_NotMountedWithoutToken(t *testing.T) {
	_, h := testEnv(t, "")
	if rec := get(t, h, "/api/links"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, h := testEnv(t, "secret")
	if rec := apiRequest(t, h, http.MethodGet, "/api/links", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, h := testEnv(t, "secret")
	if rec := apiRequest(t, h, http.MethodGet, "/api/links", "wrong", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	called := false
	h := AuthMiddleware("secret")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := do(t, h, req)
	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("valid token should pass through, status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic secret")
	if rec := do(t, h, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("non-bearer scheme status = %d, want 401", rec.Code)
	}
}

func TestAPI_LinkLifecycle(t *testing.T) {
	_, h := testEnv(t, "secret")

	rec := apiRequest(t, h, http.MethodPut, "/api/links/promo", "secret", SaveLinkRequest{URL: "https://example.com", Name: "Flyer"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = apiRequest(t, h, http.MethodGet, "/api/links/promo", "secret", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got struct {
		Slug, URL, Name string
		Favorite        bool
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Slug != "promo" || got.URL != "https://example.com" || got.Name != "Flyer" {
		t.Errorf("link = %+v", got)
	}

	rec = apiRequest(t, h, http.MethodPost, "/api/links/promo/favorite", "secret", nil)
	var fav FavoriteResponse
	_ = json.NewDecoder(rec.Body).Decode(&fav)
	if rec.Code != http.StatusOK || !fav.Favorite {
		t.Fatalf("favorite: status=%d resp=%+v", rec.Code, fav)
	}

	rec = apiRequest(t, h, http.MethodGet, "/api/links", "secret", nil)
	var list LinkListResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Links[0].Slug != "promo" || list.Default.Slug != "_default" {
		t.Errorf("list = %+v", list)
	}

	rec = apiRequest(t, h, http.MethodDelete, "/api/links/promo", "secret", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	rec = apiRequest(t, h, http.MethodDelete, "/api/links/promo", "secret", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second DELETE status = %d, want 404", rec.Code)
	}
	rec = apiRequest(t, h, http.MethodGet, "/api/links/promo", "secret", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want 404", rec.Code)
	}
}

func TestAPI_SaveValidation(t *testing.T) {
	_, h := testEnv(t, "secret")

	rec := apiRequest(t, h, http.MethodPut, "/api/links/promo", "secret", SaveLinkRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty url status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/links/promo", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer secret")
	if rec := do(t, h, req); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}
}

func TestAPI_DeleteDefaultRejected(t *testing.T) {
	_, h := testEnv(t, "secret")
	rec := apiRequest(t, h, http.MethodDelete, "/api/links/_default", "secret", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAPI_GenerateSlug(t *testing.T) {
	dir, h := testEnv(t, "secret")
	rec := apiRequest(t, h, http.MethodPost, "/api/slugs", "secret", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var resp SlugResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if _, err := dir.Get(context.Background(), resp.Slug); err == nil {
		t.Errorf("generated slug %q already in use", resp.Slug)
	}
}

func TestAPI_QRCodeUnknownSlug(t *testing.T) {
	_, h := testEnv(t, "secret")
	rec := apiRequest(t, h, http.MethodGet, "/api/links/nope/qr", "secret", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
