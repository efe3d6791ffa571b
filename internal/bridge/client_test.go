package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"revitmcp/internal/domain"
)

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

// closedPort reserves a port and releases it so nothing listens there.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func listenerStub(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	})
}

func TestDetectPortSkipsDeadPorts(t *testing.T) {
	srv := httptest.NewServer(listenerStub(http.StatusOK, `{"status":"success"}`))
	defer srv.Close()

	c := NewClient("127.0.0.1", []int{closedPort(t), serverPort(t, srv)})
	base, err := c.DetectPort(context.Background())
	require.NoError(t, err)
	require.Equal(t, srv.URL+routePrefix, base)
	require.Equal(t, base, c.BaseURL())
}

func TestDetectPortAdoptsOn404(t *testing.T) {
	srv := httptest.NewServer(listenerStub(http.StatusNotFound, "not here"))
	defer srv.Close()

	c := NewClient("127.0.0.1", []int{serverPort(t, srv)})
	_, err := c.DetectPort(context.Background())
	require.NoError(t, err)
}

func TestDetectPortAdoptsOn503(t *testing.T) {
	// A listener with no document open answers 503 on the probe path but
	// still owns the port.
	srv := httptest.NewServer(listenerStub(http.StatusServiceUnavailable,
		`{"status":"error","message":"no active document"}`))
	defer srv.Close()

	c := NewClient("127.0.0.1", []int{serverPort(t, srv)})
	base, err := c.DetectPort(context.Background())
	require.NoError(t, err)
	require.Equal(t, srv.URL+routePrefix, base)
}

func TestDetectPortNoListener(t *testing.T) {
	c := NewClient("127.0.0.1", []int{closedPort(t), closedPort(t)})
	_, err := c.DetectPort(context.Background())
	require.ErrorIs(t, err, ErrListenerNotFound)
	require.Empty(t, c.BaseURL())
}

func TestCallReturnsSuccessEnvelope(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"success","count":2}`)
	}))
	defer srv.Close()

	c := NewClient("127.0.0.1", []int{serverPort(t, srv)})
	env := c.Call(context.Background(), http.MethodPost, "/get_elements_by_category",
		map[string]string{"category_name": "Walls"})
	require.True(t, env.IsSuccess())
	require.EqualValues(t, 2, env["count"])
	require.Equal(t, map[string]interface{}{"category_name": "Walls"}, gotBody)
}

func TestCallNormalizesHTTPErrorWithTruncatedBody(t *testing.T) {
	long := strings.Repeat("x", 500)
	srv := httptest.NewServer(listenerStub(http.StatusInternalServerError, long))
	defer srv.Close()

	c := NewClient("127.0.0.1", []int{serverPort(t, srv)})
	env := c.Call(context.Background(), http.MethodGet, "/project_info", nil)
	require.Equal(t, domain.StatusError, env.Status())
	require.Contains(t, env.Message(), "HTTP 500")
	require.LessOrEqual(t, len(env.Message()), bodyTruncateN+50)
}

func TestCallRetriesOnceAfterConnectionLoss(t *testing.T) {
	// Listener starts on port A, dies, and comes back on port B.
	srvA := httptest.NewServer(listenerStub(http.StatusOK, `{"status":"success","from":"a"}`))
	portA := serverPort(t, srvA)

	lB, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	portB := lB.Addr().(*net.TCPAddr).Port
	srvB := httptest.NewUnstartedServer(listenerStub(http.StatusOK, `{"status":"success","from":"b"}`))
	srvB.Listener.Close()
	srvB.Listener = lB

	c := NewClient("127.0.0.1", []int{portA, portB})
	env := c.Call(context.Background(), http.MethodGet, "/project_info", nil)
	require.Equal(t, "a", env["from"])

	srvA.Close()
	srvB.Start()
	defer srvB.Close()

	env = c.Call(context.Background(), http.MethodGet, "/project_info", nil)
	require.True(t, env.IsSuccess(), "message: %s", env.Message())
	require.Equal(t, "b", env["from"])
}

func TestCallConnectionLossWithoutReplacement(t *testing.T) {
	srv := httptest.NewServer(listenerStub(http.StatusOK, `{"status":"success"}`))
	c := NewClient("127.0.0.1", []int{serverPort(t, srv)})
	env := c.Call(context.Background(), http.MethodGet, "/project_info", nil)
	require.True(t, env.IsSuccess())

	srv.Close()
	env = c.Call(context.Background(), http.MethodGet, "/project_info", nil)
	require.Equal(t, domain.StatusError, env.Status())
	require.Contains(t, env.Message(), "re-detection failed")
	require.Contains(t, env.Message(), srv.URL+routePrefix+"/project_info")
}

func TestSetBaseURLBypassesDetection(t *testing.T) {
	srv := httptest.NewServer(listenerStub(http.StatusOK, `{"status":"success"}`))
	defer srv.Close()

	c := NewClient("127.0.0.1", nil)
	c.SetBaseURL(srv.URL + routePrefix)
	env := c.Call(context.Background(), http.MethodGet, "/project_info", nil)
	require.True(t, env.IsSuccess())
}
