package e2e

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-carbon/internal/observability"
)

type alertFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`carbon_[a-z_]+`)

func repoPath(parts ...string) string {
	return filepath.Join(append([]string{"..", ".."}, parts...)...)
}

func loadAlerts(t *testing.T) alertFile {
	t.Helper()
	data, err := os.ReadFile(repoPath("deploy", "prometheus", "alerts", "carbon.yml"))
	if err != nil {
		t.Fatalf("read alerts: %v", err)
	}
	var out alertFile
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	return out
}

// scrape drives every collector once and returns the exposed series names.
func scrape(t *testing.T) map[string]bool {
	t.Helper()
	metrics := observability.NewMetrics()
	api := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	api.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/emissions", nil))

	jobs := metrics.Jobs()
	_ = jobs.Track("report_generate").End(errors.New("timeout"))
	_ = jobs.Track("report_recover").End(nil)
	jobs.ObserveReport("failed")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	names := map[string]bool{}
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		name := line
		if idx := strings.IndexAny(line, "{ "); idx >= 0 {
			name = line[:idx]
		}
		names[name] = true
	}
	return names
}

func TestAlertExpressionsReferenceExportedSeries(t *testing.T) {
	exported := scrape(t)
	for _, group := range loadAlerts(t).Groups {
		for _, rule := range group.Rules {
			for _, name := range metricName.FindAllString(rule.Expr, -1) {
				if !exported[name] {
					t.Fatalf("alert %s references %s which no collector exports", rule.Alert, name)
				}
			}
		}
	}
}

func TestAlertRunbooksResolveToHeadings(t *testing.T) {
	data, err := os.ReadFile(repoPath("docs", "runbook.md"))
	if err != nil {
		t.Fatalf("read runbook: %v", err)
	}
	anchors := map[string]bool{}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		slug := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "## ")))
		anchors[strings.ReplaceAll(slug, " ", "-")] = true
	}

	for _, group := range loadAlerts(t).Groups {
		for _, rule := range group.Rules {
			ref := rule.Annotations["runbook"]
			file, anchor, ok := strings.Cut(ref, "#")
			if !ok || file != "docs/runbook.md" {
				t.Fatalf("alert %s has malformed runbook %q", rule.Alert, ref)
			}
			if !anchors[anchor] {
				t.Fatalf("alert %s points at missing runbook section %q", rule.Alert, anchor)
			}
		}
	}
}
