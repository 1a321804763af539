package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func TestSocketListenTCP(t *testing.T) {
	l := SocketListen("127.0.0.1:0")
	defer l.Close()

	if l.Addr().Network() != "tcp" {
		t.Errorf("network = %s, want tcp", l.Addr().Network())
	}
}

func TestSocketListenUnix(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "api.sock")
	l := SocketListen(sock)
	defer l.Close()

	if l.Addr().Network() != "unix" {
		t.Errorf("network = %s, want unix", l.Addr().Network())
	}
}

func TestGetRequestParamsQueryString(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/chain/get_block?num=5", nil)
	params, err := GetRequestParams(r)
	if err != nil {
		t.Fatal(err)
	}
	if params["num"] != "5" {
		t.Errorf("num = %v", params["num"])
	}
}

func TestGetRequestParamsJSONBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/chain/get_block", strings.NewReader(`{"num": 5}`))
	params, err := GetRequestParams(r)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := params["num"]; !ok {
		t.Errorf("num missing from params: %v", params)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]uint32{"head_block_num": 7})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %s", ct)
	}
	if !strings.Contains(w.Body.String(), "head_block_num") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, "block not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "block not found") {
		t.Errorf("body = %s", w.Body.String())
	}
}
