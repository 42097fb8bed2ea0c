package remote

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tamos/tamos-client-go/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body), Auth: r.Header.Get("Authorization")})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newTestClient(t *testing.T, baseURL, secret string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, AuthSecret: secret, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCommands_MethodsAndPaths(t *testing.T) {
	srv, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	c := newTestClient(t, srv.URL+"/", "")
	ctx := context.Background()

	if err := c.StartSimulation(ctx); err != nil {
		t.Fatalf("StartSimulation: %v", err)
	}
	if err := c.ResetSimulation(ctx); err != nil {
		t.Fatalf("ResetSimulation: %v", err)
	}
	if err := c.TriggerHeatmapGeneration(ctx); err != nil {
		t.Fatalf("TriggerHeatmapGeneration: %v", err)
	}

	want := []recordedRequest{
		{Method: http.MethodGet, Path: "/api/sim/start"},
		{Method: http.MethodDelete, Path: "/api/sim/reset"},
		{Method: http.MethodPost, Path: "/api/heatmap/generate", Body: "{}"},
	}
	if len(*reqs) != len(want) {
		t.Fatalf("got %d requests, want %d", len(*reqs), len(want))
	}
	for i, w := range want {
		got := (*reqs)[i]
		if got.Method != w.Method || got.Path != w.Path || got.Body != w.Body {
			t.Fatalf("request %d = %+v, want %+v", i, got, w)
		}
		if got.Auth != "" {
			t.Fatalf("unexpected Authorization header without secret: %q", got.Auth)
		}
	}
}

func TestFetchLatestEntity_Decodes(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42,"objectId":"D1","latitude":37.1,"longitude":127.2,"speed":60.0}`))
	})
	c := newTestClient(t, srv.URL, "")

	pos, err := c.FetchLatestEntity(context.Background())
	if err != nil {
		t.Fatalf("FetchLatestEntity: %v", err)
	}
	want := models.EntityPosition{ID: "D1", Latitude: 37.1, Longitude: 127.2, Kind: "drone"}
	if pos != want {
		t.Fatalf("pos=%+v want %+v", pos, want)
	}
}

func TestDecodeLatestEntity_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing objectId": `{"latitude":1.0}`,
		"empty objectId":   `{"objectId":"","latitude":1.0,"longitude":2.0}`,
		"numeric objectId": `{"objectId":7,"latitude":1.0}`,
		"array":            `[{"objectId":"D1"}]`,
		"null":             `null`,
		"garbage":          `<html>`,
		"empty body":       ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeLatestEntity([]byte(body)); err == nil {
				t.Fatalf("expected decode error for %s", body)
			}
		})
	}
}

func TestDecodeLatestEntity_LenientCoordinates(t *testing.T) {
	pos, err := DecodeLatestEntity([]byte(`{"objectId":"D2","latitude":"n/a"}`))
	if err != nil {
		t.Fatal(err)
	}
	if pos.Latitude != 0 || pos.Longitude != 0 {
		t.Fatalf("pos=%+v want zero coordinates", pos)
	}
}

func TestFetchLatestEntity_ErrorKinds(t *testing.T) {
	decodeSrv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latitude":1.0}`))
	})
	_, err := newTestClient(t, decodeSrv.URL, "").FetchLatestEntity(context.Background())
	if !errors.Is(err, ErrDecode) || errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v want decode error", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindDecode {
		t.Fatalf("err=%v want *FetchError kind decode", err)
	}

	statusSrv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err = newTestClient(t, statusSrv.URL, "").FetchLatestEntity(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v want transport error", err)
	}
	if !strings.Contains(err.Error(), "status=500") {
		t.Fatalf("err=%v should mention status", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	_, err = newTestClient(t, url, "").FetchLatestEntity(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v want transport error for unreachable server", err)
	}
	if err := newTestClient(t, url, "").StartSimulation(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("StartSimulation err=%v", err)
	}
}

func TestFetchOpaquePayloads(t *testing.T) {
	heatmap := `[{"id":1,"lat":37.5,"lng":127.0,"weight":42}]`
	routes := `[{"path":[[127.02,37.49],[126.97,37.57]],"timestamps":[10,13],"color":[0,204,255]}]`
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/heatmap/data":
			_, _ = w.Write([]byte(heatmap))
		case "/api/sim/real-od":
			_, _ = w.Write([]byte(routes))
		default:
			http.NotFound(w, r)
		}
	})
	c := newTestClient(t, srv.URL, "")

	hm, err := c.FetchHeatmap(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(hm) != heatmap {
		t.Fatalf("heatmap=%s", hm)
	}
	rd, err := c.FetchRouteData(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(rd) != routes {
		t.Fatalf("routes=%s", rd)
	}
}

func TestFetchOpaquePayloads_RejectNonJSON(t *testing.T) {
	for _, body := range []string{"", "<html>oops</html>", `{"cells":[`} {
		srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		c := newTestClient(t, srv.URL, "")

		if _, err := c.FetchHeatmap(context.Background()); !errors.Is(err, ErrDecode) {
			t.Fatalf("heatmap body %q: err=%v want decode error", body, err)
		}
		if _, err := c.FetchRouteData(context.Background()); !errors.Is(err, ErrDecode) {
			t.Fatalf("route body %q: err=%v want decode error", body, err)
		}
	}
}

func TestBearerToken(t *testing.T) {
	srv, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"objectId":"D1","latitude":1,"longitude":2}`))
	})
	secret := "shared-secret"
	c := newTestClient(t, srv.URL, secret)
	if _, err := c.FetchLatestEntity(context.Background()); err != nil {
		t.Fatal(err)
	}

	auth := (*reqs)[0].Auth
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		t.Fatalf("Authorization=%q", auth)
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	sub, _ := token.Claims.GetSubject()
	if sub != "tamos-client" {
		t.Fatalf("sub=%q", sub)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "  "}); err == nil {
		t.Fatal("expected error")
	}
}
