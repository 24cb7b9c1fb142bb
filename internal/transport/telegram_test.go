package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-token", server.URL)
	if err := client.SendMessage(100, "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotBody.ChatID != 100 || gotBody.Text != "hello" {
		t.Errorf("unexpected request body %+v", gotBody)
	}
}

func TestSendMessageAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-token", server.URL)
	err := client.SendMessage(100, "hello")
	if err == nil {
		t.Fatal("SendMessage with failing API returned no error")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error does not carry API description: %v", err)
	}
}

func TestFetchDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			w.Write([]byte(`{"ok":true,"result":{"file_id":"f1","file_size":5,"file_path":"documents/doc.txt"}}`))
		case strings.Contains(r.URL.Path, "/file/"):
			w.Write([]byte("hello"))
		default:
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-token", server.URL)
	data, err := client.FetchDocument("f1")
	if err != nil {
		t.Fatalf("FetchDocument returned error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("FetchDocument returned %q, expected %q", data, "hello")
	}
}
