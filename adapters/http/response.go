package http

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/artpar/querywire/core/schema"
	"github.com/elnormous/contenttype"
)

var (
	jsonMediaType = contenttype.NewMediaType("application/json")
	xmlMediaType  = contenttype.NewMediaType("text/xml")
	formMediaType = contenttype.NewMediaType("application/x-www-form-urlencoded")

	// Action responses default to JSON; XML is served to clients that ask
	// for it, as EC2 clients do.
	actionMediaTypes = []contenttype.MediaType{jsonMediaType, xmlMediaType, contenttype.NewMediaType("application/xml")}

	// Bundle responses default to the wire form itself.
	bundleMediaTypes = []contenttype.MediaType{formMediaType, jsonMediaType}
)

// Error codes raised by the gateway itself rather than by a schema.
const (
	CodeInvalidAction         = "InvalidAction"
	CodeMalformedQueryString  = "MalformedQueryString"
	CodeRequestEntityTooLarge = "RequestEntityTooLarge"
	CodeUnsupportedMediaType  = "UnsupportedMediaType"
	CodeInternalError         = "InternalError"
)

// ErrorDetail is one entry of an error response.
type ErrorDetail struct {
	Code      string `json:"code" xml:"Code"`
	Message   string `json:"message" xml:"Message"`
	Parameter string `json:"parameter,omitempty" xml:"-"`
}

// ErrorResponse is the body of a failed request, in the EC2 layout.
type ErrorResponse struct {
	XMLName   xml.Name      `json:"-" xml:"Response"`
	Errors    []ErrorDetail `json:"errors" xml:"Errors>Error"`
	RequestID string        `json:"requestId" xml:"RequestID"`
}

// ExtractResponse is the body of a successful action request.
type ExtractResponse struct {
	Action    string            `json:"action"`
	Arguments map[string]any    `json:"arguments"`
	Leftovers map[string]string `json:"leftovers,omitempty"`
	RequestID string            `json:"requestId"`
}

// MarshalXML writes the response as <ActionResponse>, with lists as
// <item> sequences and leftovers as key/value items.
func (r ExtractResponse) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: xml.Name{Local: r.Action + "Response"}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.EncodeElement(r.RequestID, element("requestId")); err != nil {
		return err
	}
	if err := encodeTree(e, "arguments", r.Arguments); err != nil {
		return err
	}
	if len(r.Leftovers) > 0 {
		if err := encodePairs(e, "leftovers", r.Leftovers); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// BundleResponse is the JSON body of a bundle request.
type BundleResponse struct {
	Action     string            `json:"action"`
	Parameters map[string]string `json:"parameters"`
	Query      string            `json:"query"`
	RequestID  string            `json:"requestId"`
}

// SchemaList is the body of GET /schemas.
type SchemaList struct {
	Actions []string `json:"actions"`
}

// SchemaDetail is the body of GET /schemas/{action}.
type SchemaDetail struct {
	Action     string            `json:"action"`
	Parameters []ParameterDetail `json:"parameters"`
}

// ParameterDetail describes one leaf template.
type ParameterDetail struct {
	Template string `json:"template"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
	Default  any    `json:"default,omitempty"`
	Min      *int   `json:"min,omitempty"`
	Max      *int   `json:"max,omitempty"`
}

// requestError is a gateway-level failure with its own status and code.
type requestError struct {
	status  int
	code    string
	message string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func invalidAction(action string) error {
	return &requestError{
		status:  http.StatusBadRequest,
		code:    CodeInvalidAction,
		message: fmt.Sprintf("The action %s is not valid for this web service.", action),
	}
}

// classify maps an error to a status and the details reported to the
// client. Schema faults are never exposed.
func classify(err error) (int, []ErrorDetail) {
	var re *requestError
	if errors.As(err, &re) {
		return re.status, []ErrorDetail{{Code: re.code, Message: re.message}}
	}

	if !errors.Is(err, schema.ErrSchema) {
		var details []ErrorDetail
		for _, e := range schema.Errors(err) {
			details = append(details, ErrorDetail{
				Code:      string(e.Code),
				Message:   e.Message,
				Parameter: e.Parameter,
			})
		}
		if len(details) > 0 {
			return http.StatusBadRequest, details
		}
	}

	return http.StatusInternalServerError, []ErrorDetail{{
		Code:    CodeInternalError,
		Message: "An internal error has occurred.",
	}}
}

// negotiate picks the response media type, falling back to the first
// available one when the client accepts none of them.
func negotiate(r *http.Request, available []contenttype.MediaType) contenttype.MediaType {
	mt, _, err := contenttype.GetAcceptableMediaType(r, available)
	if err != nil {
		return available[0]
	}
	return mt
}

func wantsXML(r *http.Request) bool {
	mt := negotiate(r, actionMediaTypes)
	return !mt.Matches(jsonMediaType)
}

// writeBody encodes v as XML or JSON depending on the request's Accept header.
func writeBody(w http.ResponseWriter, r *http.Request, status int, v any) error {
	if wantsXML(r) {
		w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
		w.WriteHeader(status)
		if _, err := w.Write([]byte(xml.Header)); err != nil {
			return err
		}
		return xml.NewEncoder(w).Encode(v)
	}
	return writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func element(name string) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}}
}

// encodeTree writes an extracted value: structures become nested
// elements, lists become <item> sequences.
func encodeTree(e *xml.Encoder, name string, v any) error {
	switch node := v.(type) {
	case map[string]any:
		start := element(name)
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := encodeTree(e, k, node[k]); err != nil {
				return err
			}
		}
		return e.EncodeToken(start.End())
	case []any:
		start := element(name)
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		for _, item := range node {
			if err := encodeTree(e, "item", item); err != nil {
				return err
			}
		}
		return e.EncodeToken(start.End())
	}
	return e.EncodeElement(text(v), element(name))
}

// encodePairs writes keys that may not be valid element names.
func encodePairs(e *xml.Encoder, name string, pairs map[string]string) error {
	start := element(name)
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		item := struct {
			Key   string `xml:"key"`
			Value string `xml:"value"`
		}{k, pairs[k]}
		if err := e.EncodeElement(item, element("item")); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.UTC().Format(schema.DateFormat)
	case []byte:
		return string(val)
	}
	return fmt.Sprint(v)
}
