package manychat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sumire/verdictrelay/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "mc-key", BaseURL: srv.URL}, nil)
}

func TestGetSubscriber(t *testing.T) {
	var gotID, auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fb/subscriber/getInfo" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotID = r.URL.Query().Get("subscriber_id")
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"success","data":{"id":"42","custom_fields":[{"id":1,"name":"mood","value":"x"},{"id":12880026,"name":"credits","type":"number","value":5}]}}`))
	})

	sub, err := c.GetSubscriber(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetSubscriber() error = %v", err)
	}
	if gotID != "42" || auth != "Bearer mc-key" {
		t.Errorf("subscriber_id = %q, Authorization = %q", gotID, auth)
	}
	f, ok := sub.Field("credits")
	if !ok {
		t.Fatal("credits field missing")
	}
	if f.ID != 12880026 || f.Value != float64(5) {
		t.Errorf("credits field = %+v", f)
	}
	if _, ok := sub.Field("nope"); ok {
		t.Error("unexpected field")
	}
}

func TestGetSubscriberNotFound(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"null data":   {http.StatusOK, `{"status":"success","data":null}`},
		"no data":     {http.StatusOK, `{"status":"success"}`},
		"bad request": {http.StatusBadRequest, `{"status":"error","message":"Validation error"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := c.GetSubscriber(context.Background(), "7")
			if !IsNotFound(err) {
				t.Errorf("GetSubscriber() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestGetSubscriberServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.GetSubscriber(context.Background(), "7")
	if !errors.Is(err, domain.ErrUpstream) || IsNotFound(err) {
		t.Errorf("GetSubscriber() error = %v, want ErrUpstream", err)
	}
}

func TestSetCustomField(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/fb/subscriber/setCustomField" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"status":"success"}`))
	})

	if err := c.SetCustomField(context.Background(), "42", 12880026, "credits", 8); err != nil {
		t.Fatalf("SetCustomField() error = %v", err)
	}
	if body["subscriber_id"] != float64(42) || body["field_id"] != float64(12880026) ||
		body["field_name"] != "credits" || body["field_value"] != float64(8) {
		t.Errorf("unexpected body %v", body)
	}
}

func TestSetCustomFieldErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"field not found"}`))
	})
	err := c.SetCustomField(context.Background(), "42", 1, "credits", 1)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("SetCustomField() error = %v, want ErrUpstream", err)
	}
}

func TestSendText(t *testing.T) {
	var body struct {
		SubscriberID any `json:"subscriber_id"`
		Data         struct {
			Version string `json:"version"`
			Content struct {
				Messages []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"messages"`
			} `json:"content"`
		} `json:"data"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fb/sending/sendContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"status":"success"}`))
	})

	if err := c.SendText(context.Background(), "42", "hello"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if body.SubscriberID != float64(42) || body.Data.Version != "v2" {
		t.Errorf("unexpected envelope %+v", body)
	}
	if len(body.Data.Content.Messages) != 1 || body.Data.Content.Messages[0].Text != "hello" {
		t.Errorf("unexpected messages %+v", body.Data.Content.Messages)
	}
}

func TestSubscriberIDValue(t *testing.T) {
	if v := subscriberIDValue("123"); v != int64(123) {
		t.Errorf("numeric id = %#v", v)
	}
	if v := subscriberIDValue("abc"); v != "abc" {
		t.Errorf("non-numeric id = %#v", v)
	}
}
