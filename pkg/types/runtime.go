package types

import (
	"encoding/json"
	"strings"
)

// CloudFrontEvent is the Lambda@Edge viewer-request event envelope.
type CloudFrontEvent struct {
	Records []CloudFrontRecord `json:"Records"`
}

// CloudFrontRecord wraps a single CloudFront event record.
type CloudFrontRecord struct {
	CF CloudFrontPayload `json:"cf"`
}

// CloudFrontPayload carries the distribution config and the viewer request.
type CloudFrontPayload struct {
	Config  CloudFrontConfig  `json:"config"`
	Request CloudFrontRequest `json:"request"`
}

// CloudFrontConfig identifies the distribution that raised the event.
type CloudFrontConfig struct {
	DistributionDomainName string `json:"distributionDomainName,omitempty"`
	DistributionID         string `json:"distributionId,omitempty"`
	EventType              string `json:"eventType,omitempty"`
	RequestID              string `json:"requestId,omitempty"`
}

// HeaderValue is one entry of a CloudFront header list.
type HeaderValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Headers maps a lower-case header name to its values.
type Headers map[string][]HeaderValue

// Get returns the first value for the header, matching the name case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	vals, ok := h[strings.ToLower(name)]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0].Value, true
}

// Set replaces the header with a single value.
func (h Headers) Set(key, value string) {
	h[strings.ToLower(key)] = []HeaderValue{{Key: key, Value: value}}
}

// CloudFrontRequest is the viewer request as seen by an edge function.
type CloudFrontRequest struct {
	ClientIP    string  `json:"clientIp,omitempty"`
	Method      string  `json:"method"`
	URI         string  `json:"uri"`
	QueryString string  `json:"querystring"`
	Headers     Headers `json:"headers"`
}

// CloudFrontResponse is a response generated at the edge.
type CloudFrontResponse struct {
	Status            string  `json:"status"`
	StatusDescription string  `json:"statusDescription,omitempty"`
	Headers           Headers `json:"headers,omitempty"`
}

// EdgeResult is what an edge function hands back to CloudFront: either the
// (possibly rewritten) request or a generated response. It serializes as
// whichever one is set.
type EdgeResult struct {
	Request  *CloudFrontRequest
	Response *CloudFrontResponse
}

// MarshalJSON emits the response when present, otherwise the request.
func (r EdgeResult) MarshalJSON() ([]byte, error) {
	if r.Response != nil {
		return json.Marshal(r.Response)
	}
	return json.Marshal(r.Request)
}
