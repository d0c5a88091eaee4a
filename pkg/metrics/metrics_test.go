package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/Sternrassler/mako-go/pkg/ratelimit"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestCatalogue(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Catalogue {
		if !strings.HasPrefix(m.Name, "mako_") {
			t.Errorf("metric %q lacks the mako_ prefix", m.Name)
		}
		if seen[m.Name] {
			t.Errorf("metric %q listed twice", m.Name)
		}
		seen[m.Name] = true

		switch m.Kind {
		case KindCounter:
			if !strings.HasSuffix(m.Name, "_total") {
				t.Errorf("counter %q should end in _total", m.Name)
			}
		case KindHistogram:
			if !strings.HasSuffix(m.Name, "_seconds") {
				t.Errorf("histogram %q should end in _seconds", m.Name)
			}
		case KindGauge:
		default:
			t.Errorf("metric %q has unknown kind %q", m.Name, m.Kind)
		}
	}
}

func TestHandler(t *testing.T) {
	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	// Unlabelled metrics are exported as soon as their package is loaded.
	for _, name := range []string{"mako_throttle_consecutive_errors", "mako_throttle_blocks_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
