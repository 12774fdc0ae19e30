package model

import (
	"encoding/json"
)

// Meta carries the pagination metadata of one API response. ItemsTotal
// is a pointer so a missing field can be told apart from a zero count;
// a response without it is treated as malformed.
type Meta struct {
	ItemsTotal     *FlexInt `json:"items_total"`
	ItemsPageTotal FlexInt  `json:"items_page_total"`
	ItemsPageSize  FlexInt  `json:"items_page_size"`
}

// Envelope is the wrapper object the ezyVet API returns for every list
// request. Each item is wrapped under the endpoint's singular resource
// key, e.g. {"appointment": {...}}.
type Envelope struct {
	Meta  Meta                         `json:"meta"`
	Items []map[string]json.RawMessage `json:"items"`
}
