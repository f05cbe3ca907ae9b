package collect

import (
	"github.com/chromedp/cdproto/har"
)

// ExportHAR assembles a har.HAR from the network collector's stored
// records, adapted from the teacher's live-capture assembleHAR/buildEntry
// to work off the materialized NetworkRequest records instead of an
// in-memory request/response event stream.
func (c *NetworkCollector) ExportHAR(browserVersion string) (har.HAR, error) {
	reqs, err := c.Requests("", 0)
	if err != nil {
		return har.HAR{}, err
	}

	h := har.HAR{
		Log: &har.Log{
			Version: "1.2",
			Browser: &har.Creator{
				Name:    "Google Chrome",
				Version: browserVersion,
			},
			Creator: &har.Creator{
				Name:    "chrome-daemon",
				Version: "0.1.0",
			},
			Pages:   []*har.Page{},
			Entries: make([]*har.Entry, 0, len(reqs)),
		},
	}

	for _, r := range reqs {
		entry := buildHAREntry(r)
		h.Log.Entries = append(h.Log.Entries, &entry)
	}

	return h, nil
}

func buildHAREntry(r NetworkRequest) har.Entry {
	headers := make([]*har.NameValuePair, 0, len(r.RequestHeaders))
	for name, value := range r.RequestHeaders {
		headers = append(headers, &har.NameValuePair{Name: name, Value: value})
	}

	bodySize := int64(-1)
	if r.ResponseBody != "" {
		bodySize = int64(len(r.ResponseBody))
	}

	entry := har.Entry{
		Request: &har.Request{
			Method:      r.Method,
			URL:         r.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     headers,
			QueryString: []*har.NameValuePair{},
			Cookies:     []*har.Cookie{},
			HeadersSize: -1,
			BodySize:    -1,
		},
		Response: &har.Response{
			Status:      r.Status,
			StatusText:  r.StatusText,
			HTTPVersion: "HTTP/1.1",
			Headers:     []*har.NameValuePair{},
			Cookies:     []*har.Cookie{},
			Content: &har.Content{
				MimeType: r.MimeType,
				Size:     bodySize,
				Text:     r.ResponseBody,
			},
			HeadersSize: -1,
			BodySize:    bodySize,
		},
		// No timing-phase data is retained on the materialized record, so
		// every phase reports "did not occur" per the HAR spec.
		Timings: &har.Timings{Blocked: -1, DNS: -1, Connect: -1, Ssl: -1, Send: -1, Wait: -1, Receive: -1},
	}
	return entry
}
