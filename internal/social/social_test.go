package social

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================

type call struct {
	Method string
	Path   string
}

type fakeAPI struct {
	mu      sync.Mutex
	bodies  map[string]string
	errs    map[string]error
	holds   map[string]chan struct{}
	started chan string
	calls   []call
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		bodies:  map[string]string{},
		errs:    map[string]error{},
		holds:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func (f *fakeAPI) do(method, path string) (jsonval.Value, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{method, path})
	hold := f.holds[path]
	f.mu.Unlock()

	if hold != nil {
		// Ignores ctx on purpose so a stale response really arrives.
		f.started <- path
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[method+" "+path]; ok {
		return jsonval.Value{}, err
	}
	if b, ok := f.bodies[path]; ok {
		return jsonval.MustParse(b), nil
	}
	return jsonval.MustParse(`{"ok": true}`), nil
}

func (f *fakeAPI) Get(_ context.Context, path string) (jsonval.Value, error) {
	return f.do("GET", path)
}

func (f *fakeAPI) Post(_ context.Context, path string, _ any) (jsonval.Value, error) {
	return f.do("POST", path)
}

func (f *fakeAPI) Delete(_ context.Context, path string) (jsonval.Value, error) {
	return f.do("DELETE", path)
}

func (f *fakeAPI) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[path] = body
}

func (f *fakeAPI) fail(method, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method+" "+path] = err
}

func (f *fakeAPI) hold(path string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.holds[path] = ch
	return ch
}

func (f *fakeAPI) callsOf(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c.Path)
		}
	}
	return out
}

type staticUser string

func (s staticUser) UserID() string { return string(s) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newController(api *fakeAPI, opts ...Option) *Controller {
	opts = append([]Option{WithDebounce(time.Millisecond)}, opts...)
	return New(api, staticUser("u1"), testLogger(), opts...)
}

// =========================================================================
// NETWORK TESTS
// =========================================================================

func TestFetchNetwork(t *testing.T) {
	api := newFakeAPI()
	api.set(backend.NetworkPath(model.Following, "u1"), `{"following": [
		{"userId": "u2", "username": "ana", "name": {"first": "Ana", "last": "Ruiz"}},
		{"userId": "u2", "username": "ana"},
		{"username": "ghost"}
	]}`)
	api.set(backend.NetworkPath(model.Follower, "u1"), `{"followers": [
		{"userId": "u3", "username": "bo"}
	]}`)
	c := newController(api)

	n, err := c.FetchNetwork(context.Background())
	require.NoError(t, err)

	require.Len(t, n.Following, 1)
	assert.Equal(t, "u2", n.Following[0].ID)
	assert.Equal(t, "Ana Ruiz", n.Following[0].Name)
	assert.Equal(t, "You follow them", n.Following[0].Note)
	assert.Regexp(t, `^#[0-9A-F]{6}$`, n.Following[0].Accent)

	require.Len(t, n.Followers, 1)
	assert.Equal(t, "bo", n.Followers[0].Name)
	assert.Equal(t, "Follows you", n.Followers[0].Note)
	assert.Equal(t, model.Follower, n.Followers[0].Relationship)

	assert.Equal(t, n, c.Network())
}

func TestFetchNetwork_Failure(t *testing.T) {
	api := newFakeAPI()
	api.fail("GET", backend.NetworkPath(model.Follower, "u1"), errors.New("connection refused"))
	c := newController(api)

	_, err := c.FetchNetwork(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, c.Network().Following)
}

func TestFetchNetwork_SignedOut(t *testing.T) {
	c := New(newFakeAPI(), staticUser(""), testLogger())
	_, err := c.FetchNetwork(context.Background())
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// SEARCH TESTS
// =========================================================================

func TestSearchUsers_ShortQueryClears(t *testing.T) {
	api := newFakeAPI()
	var got [][]model.UserSummary
	c := newController(api, WithOnResults(func(r []model.UserSummary) { got = append(got, r) }))

	c.SearchUsers(context.Background(), "  a  ")
	c.Wait()

	assert.Empty(t, api.callsOf("GET"))
	assert.Empty(t, c.Results())
	require.Len(t, got, 1)
	assert.Empty(t, got[0])
}

func TestSearchUsers_FiltersSelfAndFollowed(t *testing.T) {
	api := newFakeAPI()
	api.set(backend.NetworkPath(model.Following, "u1"), `{"following": [{"userId": "u2", "username": "ana"}]}`)
	api.set(backend.NetworkPath(model.Follower, "u1"), `{"followers": []}`)
	api.set(backend.SearchUsersPath("u1", "an"), `{"items": [
		{"id": "u1", "username": "me"},
		{"id": "u2", "username": "ana"},
		{"id": "u4", "username": "anton", "name": "Anton K"}
	]}`)
	c := newController(api)
	_, err := c.FetchNetwork(context.Background())
	require.NoError(t, err)

	c.SearchUsers(context.Background(), " an ")
	c.Wait()

	assert.Equal(t, []model.UserSummary{{ID: "u4", Name: "Anton K", Username: "anton"}}, c.Results())
}

func TestSearchUsers_DebounceCollapsesTyping(t *testing.T) {
	api := newFakeAPI()
	api.set(backend.SearchUsersPath("u1", "anto"), `{"items": [{"id": "u4", "username": "anton"}]}`)
	c := New(api, staticUser("u1"), testLogger(), WithDebounce(50*time.Millisecond))

	for _, q := range []string{"an", "ant", "anto"} {
		c.SearchUsers(context.Background(), q)
	}
	c.Wait()

	assert.Equal(t, []string{backend.SearchUsersPath("u1", "anto")}, api.callsOf("GET"))
	require.Len(t, c.Results(), 1)
	assert.Equal(t, "u4", c.Results()[0].ID)
}

func TestSearchUsers_StaleResponseDiscarded(t *testing.T) {
	api := newFakeAPI()
	slow := backend.SearchUsersPath("u1", "bo")
	api.set(slow, `{"items": [{"id": "old", "username": "bob"}]}`)
	api.set(backend.SearchUsersPath("u1", "bor"), `{"items": [{"id": "new", "username": "boris"}]}`)
	release := api.hold(slow)

	c := newController(api)
	c.SearchUsers(context.Background(), "bo")
	assert.Equal(t, slow, <-api.started)

	c.SearchUsers(context.Background(), "bor")
	require.Eventually(t, func() bool {
		r := c.Results()
		return len(r) == 1 && r[0].ID == "new"
	}, time.Second, 5*time.Millisecond)

	close(release)
	c.Wait()

	r := c.Results()
	require.Len(t, r, 1)
	assert.Equal(t, "new", r[0].ID)
}

func TestSearchUsers_FailureNotifies(t *testing.T) {
	api := newFakeAPI()
	api.fail("GET", backend.SearchUsersPath("u1", "zz"), errors.New("boom"))
	var notified []error
	c := newController(api, WithNotifier(func(err error) { notified = append(notified, err) }))

	c.SearchUsers(context.Background(), "zz")
	c.Wait()

	require.Len(t, notified, 1)
	assert.Contains(t, notified[0].Error(), "boom")
}

func TestCancel_DropsPendingSearch(t *testing.T) {
	api := newFakeAPI()
	c := New(api, staticUser("u1"), testLogger(), WithDebounce(time.Hour))

	c.SearchUsers(context.Background(), "ana")
	c.Cancel()
	c.Wait()

	assert.Empty(t, api.callsOf("GET"))
}

// switchUser is a UserSource the test can sign out.
type switchUser struct{ id atomic.Value }

func newSwitchUser(id string) *switchUser {
	u := &switchUser{}
	u.id.Store(id)
	return u
}

func (u *switchUser) UserID() string { return u.id.Load().(string) }

func TestReset_ForgetsNetworkAndResults(t *testing.T) {
	api := newFakeAPI()
	api.set(backend.NetworkPath(model.Following, "u1"), `{"following": [{"userId": "u2", "username": "ana"}]}`)
	api.set(backend.NetworkPath(model.Follower, "u1"), `{"followers": [{"userId": "u3", "username": "ben"}]}`)
	api.set(backend.SearchUsersPath("u1", "an"), `{"items": [{"id": "u4", "username": "anton"}]}`)
	c := newController(api)
	_, err := c.FetchNetwork(context.Background())
	require.NoError(t, err)
	c.SearchUsers(context.Background(), "an")
	c.Wait()
	require.Len(t, c.Results(), 1)

	c.Reset()

	assert.Empty(t, c.Network().Following)
	assert.Empty(t, c.Network().Followers)
	assert.NotNil(t, c.Network().Following)
	assert.Empty(t, c.Results())
}

func TestFetchNetwork_SignedOutMidFetchIsDropped(t *testing.T) {
	api := newFakeAPI()
	following := backend.NetworkPath(model.Following, "u1")
	api.set(following, `{"following": [{"userId": "u2", "username": "ana"}]}`)
	api.set(backend.NetworkPath(model.Follower, "u1"), `{"followers": []}`)
	release := api.hold(following)
	user := newSwitchUser("u1")
	c := New(api, user, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := c.FetchNetwork(context.Background())
		done <- err
	}()
	assert.Equal(t, following, <-api.started)

	user.id.Store("")
	c.Reset()
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, c.Network().Following)
}

// =========================================================================
// FOLLOW TESTS
// =========================================================================

func TestFollowUser(t *testing.T) {
	api := newFakeAPI()
	api.set(backend.SearchUsersPath("u1", "ana"), `{"items": [{"id": "u2", "username": "ana", "name": "Ana R"}]}`)
	c := newController(api)
	c.SearchUsers(context.Background(), "ana")
	c.Wait()
	require.Len(t, c.Results(), 1)

	require.NoError(t, c.FollowUser(context.Background(), "u2"))

	assert.Equal(t, []string{
		"/following/user/u1/usertoadd/u2",
		"/followers/user/u2/usertoadd/u1",
	}, api.callsOf("POST"))
	assert.Empty(t, c.Results())

	following := c.Network().Following
	require.Len(t, following, 1)
	assert.Equal(t, "Ana R", following[0].Name)
	assert.Equal(t, "You follow them", following[0].Note)
}

func TestFollowUser_SecondStepFails(t *testing.T) {
	api := newFakeAPI()
	api.fail("POST", "/followers/user/u2/usertoadd/u1", errors.New("server down"))
	c := newController(api)

	err := c.FollowUser(context.Background(), "u2")

	var fe *FollowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "follow", fe.Op)
	assert.Equal(t, 2, fe.Step)
	assert.Contains(t, err.Error(), "server down")

	// The first write stays; nothing is rolled back.
	assert.Len(t, api.callsOf("POST"), 2)
	assert.Empty(t, api.callsOf("DELETE"))
	assert.Empty(t, c.Network().Following)
}

func TestFollowUser_Validation(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)

	assert.ErrorIs(t, c.FollowUser(context.Background(), "u1"), apperror.ErrValidation)
	assert.ErrorIs(t, c.FollowUser(context.Background(), " "), apperror.ErrValidation)
	assert.Empty(t, api.callsOf("POST"))
}

func TestUnfollowUser(t *testing.T) {
	api := newFakeAPI()
	api.set(backend.NetworkPath(model.Following, "u1"), `{"following": [{"userId": "u2", "username": "ana"}]}`)
	c := newController(api)
	_, err := c.FetchNetwork(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.UnfollowUser(context.Background(), "u2"))
	assert.Equal(t, []string{
		"/following/user/u1/usertoremove/u2",
		"/followers/user/u2/usertoremove/u1",
	}, api.callsOf("DELETE"))
	assert.Empty(t, c.Network().Following)
}

func TestUnfollowUser_FirstStepFails(t *testing.T) {
	api := newFakeAPI()
	api.fail("DELETE", "/following/user/u1/usertoremove/u2", &backend.HTTPError{Status: 404, Message: "user_not_found"})
	c := newController(api)

	err := c.UnfollowUser(context.Background(), "u2")

	var fe *FollowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Step)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Len(t, api.callsOf("DELETE"), 1)
}
