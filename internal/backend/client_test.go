package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

// =========================================================================
// SUCCESS TESTS
// =========================================================================

func TestGet_ParsesBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movies/user/u1", r.URL.Path)
		w.Write([]byte(`{"items": [{"id": 1}]}`))
	})

	v, err := c.Get(context.Background(), "/movies/user/u1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Get("items").Len())
}

func TestPost_SendsJSONAndBearer(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"email":"a@b.c"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	})
	c.SetTokenSource(func() string { return "tok-1" })

	v, err := c.Post(context.Background(), "/x", map[string]string{"email": "a@b.c"})
	require.NoError(t, err)
	assert.True(t, v.IsNull(), "empty body parses as null")
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	})
	c.SetTokenSource(func() string { return "" })

	_, err := c.Get(context.Background(), "/")
	require.NoError(t, err)
}

// =========================================================================
// ERROR TESTS
// =========================================================================

func TestDo_ErrorMessageFallbackChain(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail wins", 500, `{"detail": "db down", "error": "server"}`, "db down"},
		{"error next", 409, `{"error": "duplicate_entry"}`, "duplicate_entry"},
		{"message last", 400, `{"message": "bad"}`, "bad"},
		{"not json", 502, `<html>bad gateway</html>`, "HTTP 502"},
		{"empty", 503, ``, "HTTP 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Get(context.Background(), "/x")
			require.Error(t, err)

			var he *HTTPError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, tt.status, he.Status)
			assert.Equal(t, tt.want, he.Message)
			assert.Equal(t, tt.status, StatusOf(err))
		})
	}
}

func TestHTTPError_UnwrapsToSentinels(t *testing.T) {
	assert.ErrorIs(t, &HTTPError{Status: 404}, apperror.ErrNotFound)
	assert.ErrorIs(t, &HTTPError{Status: 401}, apperror.ErrUnauthorized)
	assert.ErrorIs(t, &HTTPError{Status: 409}, apperror.ErrConflict)
	assert.ErrorIs(t, &HTTPError{Status: 400}, apperror.ErrValidation)
	assert.NotErrorIs(t, &HTTPError{Status: 500}, apperror.ErrNotFound)
}

func TestDo_TransportErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).Get(context.Background(), "/x")
	require.Error(t, err)
	assert.Equal(t, 0, StatusOf(err))
	assert.Contains(t, err.Error(), "GET /x")
}

func TestDo_InvalidJSONOnSuccess(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})
	_, err := c.Get(context.Background(), "/x")
	assert.Error(t, err)
}

func TestNew_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
	assert.Equal(t, "http://h:1", New(" http://h:1/ ").BaseURL())
}

// =========================================================================
// ROUTE TESTS
// =========================================================================

func TestRoutes(t *testing.T) {
	assert.Equal(t, "/movies/user/u1", ListPath(model.ListWatched, "u1"))
	assert.Equal(t, "/watchlatermovies/user/u1", ListPath(model.ListLater, "u1"))
	assert.Equal(t, "/read/user/u1", ListPath(model.ListRead, "u1"))
	assert.Equal(t, "/toberead/user/u1", ListPath(model.ListToRead, "u1"))

	assert.Equal(t, "readBooks", ListField(model.ListRead))
	assert.Equal(t, "toBeReadBooks", ListField(model.ListToRead))
	assert.Equal(t, "items", ListField(model.ListLater))

	assert.Equal(t, "/addwatchedmovie/user/u1/movie/27205", AddItemPath(model.ListWatched, "u1", "27205"))
	assert.Equal(t, "/removewatchlatermovie/user/u1/movie/5", RemoveItemPath(model.ListLater, "u1", "5"))
	assert.Equal(t, "/toberead/user/u1/book/OL1W%2Fx", RemoveItemPath(model.ListToRead, "u1", "OL1W/x"))

	assert.Equal(t, "/createbookreview", CreateReviewPath(model.KindBook))
	assert.Equal(t, "/reviews/movie/r1", DeleteReviewPath(model.KindMovie, "r1"))

	assert.Equal(t, "/following/user/u1/usertoadd/u2", EdgePath(model.Following, "u1", "u2", true))
	assert.Equal(t, "/followers/user/u2/usertoremove/u1", EdgePath(model.Follower, "u2", "u1", false))
	assert.Equal(t, "/users/u1/searchUsers/al%20e", SearchUsersPath("u1", "al e"))
}
