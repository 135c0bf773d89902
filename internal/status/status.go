package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const checkTimeout = 2 * time.Second

// Report describes the model server as seen from /api/tags.
type Report struct {
	Online  bool
	Healthy bool
	Models  []string
	Granite string
}

// Lines renders the report the way the status command prints it.
func (r Report) Lines() []string {
	switch {
	case !r.Online:
		return []string{"Ollama: NOT RUNNING"}
	case !r.Healthy:
		return []string{"Ollama: ERROR"}
	}

	lines := []string{fmt.Sprintf("Ollama: ONLINE (%d models)", len(r.Models))}
	if r.Granite != "" {
		lines = append(lines, fmt.Sprintf("Granite: AVAILABLE (%s)", r.Granite))
	} else {
		lines = append(lines, "Granite: NOT FOUND")
	}
	return lines
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Check queries baseURL/api/tags. Transport failures are reported in the
// Report, not as an error; err is only set for a malformed body.
func Check(ctx context.Context, client *http.Client, baseURL string) (Report, error) {
	if client == nil {
		client = &http.Client{Timeout: checkTimeout}
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return Report{}, errors.Wrap(err, "building status request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return Report{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Report{Online: true}, nil
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Report{Online: true}, errors.Wrap(err, "decoding model list")
	}

	report := Report{Online: true, Healthy: true}
	for _, m := range tags.Models {
		report.Models = append(report.Models, m.Name)
		if report.Granite == "" && strings.Contains(strings.ToLower(m.Name), "granite") {
			report.Granite = m.Name
		}
	}
	return report, nil
}
