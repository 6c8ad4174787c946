package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestServer(t *testing.T) {
	srv, err := StartServer("127.0.0.1:0", zerolog.Nop())
	if err != nil {
		t.Fatalf("StartServer failed: %v", err)
	}
	defer srv.Shutdown(context.Background())

	CapturesSavedTotal.Inc()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "streamsnap_captures_saved_total") {
		t.Error("metrics output is missing streamsnap_captures_saved_total")
	}

	resp, err = http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}
