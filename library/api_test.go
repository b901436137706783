package library

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/playback"
)

func TestGetResponse(t *testing.T) {
	testCases := []struct {
		name         string
		serverStatus int
		serverBody   string
		expectError  bool
		caller       string
	}{
		{
			name:         "Success",
			serverStatus: http.StatusOK,
			serverBody:   `{"chorus": {"status": "ok"}}`,
			expectError:  false,
			caller:       "TestCaller",
		},
		{
			name:         "Non-200 Status Code",
			serverStatus: http.StatusBadRequest,
			serverBody:   `{"chorus": {"status": "failed"}}`,
			expectError:  true,
			caller:       "TestCaller",
		},
		{
			name:         "Invalid JSON Response",
			serverStatus: http.StatusOK,
			serverBody:   `{"chorus": {"status": `,
			expectError:  true,
			caller:       "TestCaller",
		},
		{
			name:         "Server-Side Error Status",
			serverStatus: http.StatusOK,
			serverBody:   `{"chorus": {"status": "failed", "error": "no such item"}}`,
			expectError:  true,
			caller:       "TestCaller",
		},
		{
			name:         "Empty Caller",
			serverStatus: http.StatusOK,
			serverBody:   `{"chorus": {"status": "ok"}}`,
			expectError:  false,
			caller:       "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.serverStatus)
				if _, err := w.Write([]byte(tc.serverBody)); err != nil {
					t.Fatalf("failed to write server response: %v", err)
				}
			}))
			defer server.Close()

			connection := &Connection{}

			_, err := connection.getResponse(tc.caller, server.URL)

			if tc.expectError {
				if err == nil {
					t.Errorf("expected an error but got none")
				} else if !containsCallerInError(err, tc.caller) {
					t.Errorf("expected error to contain caller [%s], but got: %v", tc.caller, err)
				}
			} else if err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

func containsCallerInError(err error, caller string) bool {
	return err != nil && (caller == "" || strings.Contains(err.Error(), "["+caller+"]"))
}

func TestStreamURL(t *testing.T) {
	testCases := []struct {
		name        string
		item        playback.Item
		serverBody  string
		wantURL     string
		wantParams  map[string]string
		expectError bool
	}{
		{
			name:       "Track With Local File",
			item:       playback.Item{Kind: playback.KindTrack, ID: "tr-1", HasLocalFile: true},
			serverBody: `{"chorus": {"status": "ok", "stream": {"url": "http://files/tr-1.flac", "format": "flac", "available": true}}}`,
			wantURL:    "http://files/tr-1.flac",
			wantParams: map[string]string{"kind": "track", "id": "tr-1"},
		},
		{
			name:       "Track Fallback Lookup",
			item:       playback.Item{Kind: playback.KindTrack, ID: "tr-2"},
			serverBody: `{"chorus": {"status": "ok", "stream": {"url": "http://fallback/tr-2", "available": true}}}`,
			wantURL:    "http://fallback/tr-2",
			wantParams: map[string]string{"fallback": "true"},
		},
		{
			name:       "Podcast Episode Splits Composite ID",
			item:       playback.Item{Kind: playback.KindPodcast, ID: "pod-9:ep-3"},
			serverBody: `{"chorus": {"status": "ok", "stream": {"url": "http://cache/pod-9/ep-3.mp3", "available": true}}}`,
			wantURL:    "http://cache/pod-9/ep-3.mp3",
			wantParams: map[string]string{"podcastId": "pod-9", "episodeId": "ep-3"},
		},
		{
			name:        "Unavailable",
			item:        playback.Item{Kind: playback.KindTrack, ID: "tr-3"},
			serverBody:  `{"chorus": {"status": "ok", "stream": {"available": false}}}`,
			expectError: true,
		},
		{
			name:        "Malformed Podcast ID",
			item:        playback.Item{Kind: playback.KindPodcast, ID: "nodelimiter"},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotQuery map[string][]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query()
				if _, err := w.Write([]byte(tc.serverBody)); err != nil {
					t.Fatalf("failed to write server response: %v", err)
				}
			}))
			defer server.Close()

			connection := Init(logger.Init())
			connection.Host = server.URL

			info, err := connection.StreamURL(tc.item)

			if tc.expectError {
				if err == nil {
					t.Errorf("expected an error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error but got: %v", err)
			}
			if info.URL != tc.wantURL {
				t.Errorf("expected url %q, got %q", tc.wantURL, info.URL)
			}
			for k, v := range tc.wantParams {
				if got := gotQuery[k]; len(got) != 1 || got[0] != v {
					t.Errorf("expected query param %s=%s, got %v", k, v, got)
				}
			}
		})
	}
}

func TestGetCacheStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("podcastId") != "pod-1" || r.URL.Query().Get("episodeId") != "ep-1" {
			http.Error(w, "wrong ids", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"chorus": {"status": "ok", "cacheStatus": {"cached": false, "downloading": true, "downloadProgress": 41.5}}}`))
	}))
	defer server.Close()

	connection := Init(logger.Init())
	connection.Host = server.URL

	status, err := connection.GetCacheStatus("pod-1", "ep-1")
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}
	if status.Cached {
		t.Errorf("expected cached=false")
	}
	if !status.Downloading {
		t.Errorf("expected downloading=true")
	}
	if status.DownloadProgress != 41.5 {
		t.Errorf("expected downloadProgress=41.5, got %v", status.DownloadProgress)
	}
}

func TestProgressRoundTrip(t *testing.T) {
	saved := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/progress/save":
			saved["id"] = r.URL.Query().Get("id")
			saved["position"] = r.URL.Query().Get("position")
			_, _ = w.Write([]byte(`{"chorus": {"status": "ok"}}`))
		case "/api/progress/get":
			if r.URL.Query().Get("id") == "book-1" {
				_, _ = w.Write([]byte(`{"chorus": {"status": "ok", "progress": {"itemId": "book-1", "currentTime": 321.5, "duration": 10000, "isFinished": false}}}`))
			} else {
				_, _ = w.Write([]byte(`{"chorus": {"status": "ok"}}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	connection := Init(logger.Init())
	connection.Host = server.URL

	if err := connection.SaveProgress("book-1", 321.5, 10000, false); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	if saved["id"] != "book-1" || saved["position"] != "321.500" {
		t.Errorf("unexpected save query: %v", saved)
	}

	progress, ok, err := connection.LoadProgress("book-1")
	if err != nil {
		t.Fatalf("LoadProgress: %v", err)
	}
	if !ok {
		t.Fatalf("expected a saved progress")
	}
	if progress.Position != 321.5 {
		t.Errorf("expected position 321.5, got %v", progress.Position)
	}

	_, ok, err = connection.LoadProgress("book-2")
	if err != nil {
		t.Fatalf("LoadProgress (absent): %v", err)
	}
	if ok {
		t.Errorf("expected no progress for unknown item")
	}
}
