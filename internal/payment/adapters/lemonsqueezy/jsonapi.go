package lemonsqueezy

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const contentType = "application/vnd.api+json"

type relation struct {
	Data resourceIdentifier `json:"data"`
}

type resourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// request is a JSON:API write document.
type request struct {
	Data requestData `json:"data"`
}

type requestData struct {
	Type          string              `json:"type"`
	ID            string              `json:"id,omitempty"`
	Attributes    map[string]any      `json:"attributes,omitempty"`
	Relationships map[string]relation `json:"relationships,omitempty"`
}

type resource[T any] struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes T      `json:"attributes"`
}

type document[T any] struct {
	Data resource[T] `json:"data"`
}

type listDocument[T any] struct {
	Data []resource[T] `json:"data"`
	Meta struct {
		Page struct {
			CurrentPage int `json:"currentPage"`
			LastPage    int `json:"lastPage"`
		} `json:"page"`
	} `json:"meta"`
}

func (d listDocument[T]) hasMore() bool {
	return d.Meta.Page.CurrentPage > 0 && d.Meta.Page.CurrentPage < d.Meta.Page.LastPage
}

func related(kind, id string) relation {
	return relation{Data: resourceIdentifier{Type: kind, ID: id}}
}

// flexibleID accepts ids sent as numbers or strings.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

func (f flexibleID) String() string { return string(f) }

func toInt(id string) any {
	if n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
		return n
	}
	return id
}

func parseTime(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func timeOrZero(value *string) time.Time {
	if t := parseTime(value); t != nil {
		return *t
	}
	return time.Time{}
}
