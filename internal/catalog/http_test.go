package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewHTTPClient(srv.URL, 1000)
	return c, srv
}

func TestHTTPClient_ListPage_Envelope(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("expected page=2, got %q", r.URL.Query().Get("page"))
		}
		w.Write([]byte(`{"list":[{"pid":"CJ1"},{"pid":"CJ2"},{"title":"no pid"}],"total_pages":7}`))
	})
	defer srv.Close()

	items, total, err := c.ListPage(context.Background(), 2, 50, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected 7 pages, got %d", total)
	}
	if len(items) != 2 || items[0].PID != "CJ1" || items[1].PID != "CJ2" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestHTTPClient_ListPage_BareArray(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"pid":"CJ1"}]`))
	})
	defer srv.Close()

	items, total, err := c.ListPage(context.Background(), 1, 50, nil)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("unexpected: items=%v total=%d err=%v", items, total, err)
	}
}

func TestHTTPClient_ErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"message":"slow down"}`, KindRateLimited},
		{"gone", http.StatusGone, `{}`, KindRemoved},
		{"off shelf code", http.StatusBadRequest, `{"code":"ITEM_OFF_SHELF","message":"product was removed from shelves"}`, KindRemoved},
		{"not found", http.StatusNotFound, `{}`, KindNotFound},
		{"server error", http.StatusBadGateway, `{}`, KindTransient},
		{"other", http.StatusBadRequest, `{"code":"WHATEVER"}`, KindOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			defer srv.Close()

			_, err := c.GetDetail(context.Background(), "CJ1")
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := KindOf(err); got != tc.want {
				t.Fatalf("expected kind %s, got %s (%v)", tc.want, got, err)
			}
		})
	}
}

func TestHTTPClient_RemovalMessageDoesNotLeakIntoOtherKinds(t *testing.T) {
	// An unrelated error whose message merely mentions removal wording must
	// not classify as removed: only the machine code or status does that.
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"VALIDATION","message":"field 'removed from shelves' is invalid"}`))
	})
	defer srv.Close()

	_, err := c.GetVariants(context.Background(), "CJ1")
	if IsRemoved(err) {
		t.Fatalf("message text must not trigger removal classification")
	}
}
