package beehive_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/beehive"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/httpx"
)

func newClient(srv *httptest.Server) *beehive.Client {
	return beehive.NewClient(httpx.NewClient(5*time.Second, 0), srv.URL, "test-key")
}

func TestEntityIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authGroup/weather-auth/entityId" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "0" {
			t.Errorf("missing page parameter: %q", r.URL.RawQuery)
		}
		if r.Header.Get("x-apikey") != "test-key" {
			t.Errorf("missing api key header")
		}
		io.WriteString(w, `{"entities":[
			{"entityId":{"id":"ent-out-1"}},
			{"entityId":{"id":"ent-out-2"}}
		]}`)
	}))
	defer srv.Close()

	ids, err := newClient(srv).EntityIDs(context.Background(), "weather-auth")
	if err != nil {
		t.Fatalf("EntityIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "ent-out-1" || ids[1] != "ent-out-2" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestTimeSeries(t *testing.T) {
	start := time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	var keyCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authGroup/weather-auth/valueType":
			keyCalls.Add(1)
			io.WriteString(w, `{"valueType":{"TIME_SERIES":[
				{"key":"temperature"},{"key":"humidity"}
			]}}`)
		case "/authGroup/weather-auth/entityId/ent-out-1/valueType/timeseries":
			q := r.URL.Query()
			if q.Get("keys") != "temperature,humidity" {
				t.Errorf("unexpected keys: %q", q.Get("keys"))
			}
			if q.Get("startTs") != "1699999200000" || q.Get("endTs") != "1699999500000" {
				t.Errorf("window not in milliseconds: start=%q end=%q", q.Get("startTs"), q.Get("endTs"))
			}
			io.WriteString(w, `{"timeseries":{"temperature":[{"ts":1699999260,"value":12.5}]}}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newClient(srv)
	payload, err := c.TimeSeries(context.Background(), "ent-out-1", "weather-auth", start, end)
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if _, ok := decoded["temperature"]; !ok {
		t.Errorf("inner timeseries object not returned verbatim: %s", payload)
	}

	// The key set is platform configuration: fetched once, then cached.
	if _, err := c.TimeSeries(context.Background(), "ent-out-1", "weather-auth", start, end); err != nil {
		t.Fatalf("second TimeSeries: %v", err)
	}
	if keyCalls.Load() != 1 {
		t.Errorf("expected 1 valueType fetch, got %d", keyCalls.Load())
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newClient(srv).EntityIDs(context.Background(), "weather-auth")
	var se *beehive.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", se.StatusCode)
	}
	if se.Error() != "beehive: list entities: status 403" {
		t.Errorf("unexpected message: %q", se.Error())
	}
}

func TestTimeSeries_KeyFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(srv).TimeSeries(context.Background(), "ent-out-1", "weather-auth", time.Now().Add(-time.Hour), time.Now())
	var se *beehive.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError from key discovery, got %v", err)
	}
	if se.Op != "value types" {
		t.Errorf("unexpected op %q", se.Op)
	}
}

func TestEntityIDs_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"entities": [`)
	}))
	defer srv.Close()

	if _, err := newClient(srv).EntityIDs(context.Background(), "weather-auth"); err == nil {
		t.Error("expected a decode error")
	}
}
