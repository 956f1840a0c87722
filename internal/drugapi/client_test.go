package drugapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestSearch(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantNames []string
	}{
		{
			name:      "array of items",
			body:      `{"body":{"totalCount":2,"items":[{"itemSeq":"1","itemName":"Tylenol"},{"itemSeq":"2","itemName":"Tylenol ER"}]}}`,
			wantNames: []string{"Tylenol", "Tylenol ER"},
		},
		{
			name:      "single object",
			body:      `{"body":{"totalCount":1,"items":{"itemSeq":"9","itemName":"Vitamin D","atpnWarnQesitm":"under 3"}}}`,
			wantNames: []string{"Vitamin D"},
		},
		{
			name:      "no items",
			body:      `{"body":{"totalCount":0,"items":""}}`,
			wantNames: nil,
		},
		{
			name:      "missing body",
			body:      `{}`,
			wantNames: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery map[string][]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query()
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(context.Background(), Config{BaseURL: srv.URL, APIKey: "secret"}, zap.NewNop())
			drugs, err := c.Search(context.Background(), "tylenol")
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}

			if len(drugs) != len(tt.wantNames) {
				t.Fatalf("got %d drugs, want %d", len(drugs), len(tt.wantNames))
			}
			for i, want := range tt.wantNames {
				if drugs[i].Name != want {
					t.Errorf("drugs[%d].Name = %q, want %q", i, drugs[i].Name, want)
				}
			}

			if got := gotQuery["serviceKey"]; len(got) != 1 || got[0] != "secret" {
				t.Errorf("serviceKey = %v", got)
			}
			if got := gotQuery["itemName"]; len(got) != 1 || got[0] != "tylenol" {
				t.Errorf("itemName = %v", got)
			}
			if got := gotQuery["type"]; len(got) != 1 || got[0] != "json" {
				t.Errorf("type = %v", got)
			}
		})
	}
}

func TestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("itemSeq") != "42" {
			_, _ = w.Write([]byte(`{"body":{"items":[]}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"body": map[string]interface{}{
				"items": []map[string]string{{"itemSeq": "42", "itemName": "Ibuprofen", "entpName": "Acme"}},
			},
		})
	}))
	defer srv.Close()

	c := New(context.Background(), Config{BaseURL: srv.URL}, zap.NewNop())

	got, err := c.Details(context.Background(), "42")
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if got == nil || got.Manufacturer != "Acme" {
		t.Errorf("Details() = %+v", got)
	}

	missing, err := c.Details(context.Background(), "7")
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if missing != nil {
		t.Errorf("Details() = %+v, want nil", missing)
	}
}

func TestErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		c := New(context.Background(), Config{}, zap.NewNop())
		if _, err := c.Search(context.Background(), "x"); err != ErrNotConfigured {
			t.Errorf("Search() error = %v, want ErrNotConfigured", err)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := New(context.Background(), Config{BaseURL: srv.URL}, zap.NewNop())
		if _, err := c.Search(context.Background(), "x"); err == nil {
			t.Error("expected an error for a non-200 response")
		}
	})

	t.Run("oauth2 token is attached", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
		})
		var auth string
		mux.HandleFunc("/drugs", func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"body":{"items":[]}}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c := New(context.Background(), Config{
			BaseURL:      srv.URL + "/drugs",
			ClientID:     "id",
			ClientSecret: "secret",
			TokenURL:     srv.URL + "/token",
		}, zap.NewNop())
		if _, err := c.Search(context.Background(), "x"); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if auth != "Bearer tok" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer tok")
		}
	})
}
