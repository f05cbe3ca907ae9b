package cdpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

func listJSON(port int, timeout time.Duration) ([]TargetEntry, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/json/list", port))
	if err != nil {
		return nil, chromeerr.Wrap(chromeerr.KindConnection, "GET /json/list", err)
	}
	defer resp.Body.Close()

	var entries []TargetEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, chromeerr.Wrap(chromeerr.KindConnection, "decoding /json/list", err)
	}

	pages := make([]TargetEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type == "page" {
			pages = append(pages, e)
		}
	}
	return pages, nil
}
