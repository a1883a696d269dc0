package flow

import (
	"encoding/json"
	"fmt"
)

const (
	defaultMethod        = "GET"
	defaultTimeoutSeconds = 60
	defaultRedirectLimit  = 5
)

// Header is a single ordered (name, value) pair. HTTP headers are kept as a
// sequence rather than a map so that repeated header names and a stable
// wire order both survive a round trip.
type Header struct {
	Name  string
	Value string
}

// MarshalJSON encodes a Header as a two-element JSON array, [name, value].
func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{h.Name, h.Value})
}

// UnmarshalJSON decodes a Header from a two-element JSON array.
func (h *Header) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("flow: decoding header pair: %w", err)
	}
	h.Name, h.Value = pair[0], pair[1]
	return nil
}

// FormField is a single ordered (name, value) pair used by FormUrlEncoded
// bodies.
type FormField struct {
	Name  string
	Value string
}

// MarshalJSON encodes a FormField as a two-element JSON array.
func (f FormField) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.Name, f.Value})
}

// UnmarshalJSON decodes a FormField from a two-element JSON array.
func (f *FormField) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("flow: decoding form field pair: %w", err)
	}
	f.Name, f.Value = pair[0], pair[1]
	return nil
}

// FormDataValue is either a literal string or a reference to a file on disk
// to be uploaded with the given content type.
type FormDataValue struct {
	IsFile      bool
	Str         string
	FilePath    string
	ContentType string
}

func (v FormDataValue) MarshalJSON() ([]byte, error) {
	if v.IsFile {
		return json.Marshal(map[string]any{
			"FilePath": map[string]string{"path": v.FilePath, "content_type": v.ContentType},
		})
	}
	return json.Marshal(map[string]string{"Str": v.Str})
}

func (v *FormDataValue) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("flow: decoding form data value: %w", err)
	}
	if body, ok := raw["FilePath"]; ok {
		var fp struct {
			Path        string `json:"path"`
			ContentType string `json:"content_type"`
		}
		if err := json.Unmarshal(body, &fp); err != nil {
			return fmt.Errorf("flow: decoding FilePath form value: %w", err)
		}
		v.IsFile = true
		v.FilePath = fp.Path
		v.ContentType = fp.ContentType
		return nil
	}
	if body, ok := raw["Str"]; ok {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return fmt.Errorf("flow: decoding Str form value: %w", err)
		}
		v.Str = s
		return nil
	}
	return fmt.Errorf("flow: form data value carries neither Str nor FilePath")
}

// FormDataField pairs a form field name with its value.
type FormDataField struct {
	Name  string
	Value FormDataValue
}

// BodyKind identifies which HttpBody variant is in effect.
type BodyKind string

const (
	BodyEmpty                 BodyKind = "Empty"
	BodyRaw                    BodyKind = "Raw"
	BodyFormData               BodyKind = "FormData"
	BodyFormUrlEncoded         BodyKind = "FormUrlEncoded"
	BodyBinaryOctetFilePath    BodyKind = "BinaryOctetFilePath"
)

// HttpBody is the tagged union of request body encodings. The zero value is
// BodyEmpty.
type HttpBody struct {
	Kind           BodyKind
	Raw            string
	FormData       []FormDataField
	FormUrlEncoded []FormField
	FilePath       string
}

func (b HttpBody) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case "", BodyEmpty:
		return json.Marshal("Empty")
	case BodyRaw:
		return json.Marshal(map[string]string{"Raw": b.Raw})
	case BodyFormData:
		return json.Marshal(map[string][]FormDataField{"FormData": b.FormData})
	case BodyFormUrlEncoded:
		return json.Marshal(map[string][]FormField{"FormUrlEncoded": b.FormUrlEncoded})
	case BodyBinaryOctetFilePath:
		return json.Marshal(map[string]string{"BinaryOctetFilePath": b.FilePath})
	default:
		return nil, fmt.Errorf("flow: body has unknown kind %q", b.Kind)
	}
}

func (b *HttpBody) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag == string(BodyEmpty) {
			b.Kind = BodyEmpty
			return nil
		}
		return fmt.Errorf("flow: unrecognized body literal %q", tag)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("flow: decoding body: %w", err)
	}

	if body, ok := raw[string(BodyRaw)]; ok {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return fmt.Errorf("flow: decoding Raw body: %w", err)
		}
		b.Kind = BodyRaw
		b.Raw = s
		return nil
	}
	if body, ok := raw[string(BodyFormData)]; ok {
		var fields []FormDataField
		if err := json.Unmarshal(body, &fields); err != nil {
			return fmt.Errorf("flow: decoding FormData body: %w", err)
		}
		b.Kind = BodyFormData
		b.FormData = fields
		return nil
	}
	if body, ok := raw[string(BodyFormUrlEncoded)]; ok {
		var fields []FormField
		if err := json.Unmarshal(body, &fields); err != nil {
			return fmt.Errorf("flow: decoding FormUrlEncoded body: %w", err)
		}
		b.Kind = BodyFormUrlEncoded
		b.FormUrlEncoded = fields
		return nil
	}
	if body, ok := raw[string(BodyBinaryOctetFilePath)]; ok {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return fmt.Errorf("flow: decoding BinaryOctetFilePath body: %w", err)
		}
		b.Kind = BodyBinaryOctetFilePath
		b.FilePath = s
		return nil
	}

	return fmt.Errorf("flow: body object carries none of the recognized variants")
}

// HttpParams is the request description for an HttpRequest step.
type HttpParams struct {
	URL            string   `json:"url"`
	Method         string   `json:"method"`
	Headers        []Header `json:"headers"`
	Body           HttpBody `json:"body"`
	Session        *string  `json:"session,omitempty"`
	Timeout        *uint64  `json:"timeout,omitempty"`
	RedirectLimit  *int     `json:"redirect_limit,omitempty"`
}

// setDefaults fills in the zero-value defaults documented for HttpParams,
// applied before the caller's JSON overwrites present fields.
func (p *HttpParams) setDefaults() {
	p.Method = defaultMethod
}

// TimeoutSeconds returns the effective per-request timeout, defaulting to
// 60s when unset.
func (p *HttpParams) TimeoutSeconds() uint64 {
	if p.Timeout != nil {
		return *p.Timeout
	}
	return defaultTimeoutSeconds
}

// RedirectLimitOrDefault returns the effective redirect cap, defaulting to 5.
func (p *HttpParams) RedirectLimitOrDefault() int {
	if p.RedirectLimit != nil {
		return *p.RedirectLimit
	}
	return defaultRedirectLimit
}

// HttpMetric is one recorded sample of an HTTP step's outcome and timing,
// the unit written to the collected metrics output file.
type HttpMetric struct {
	URL               string `json:"url"`
	HttpVerb          string `json:"http_verb"`
	StatusCode        int    `json:"status_code"`
	ResponseBodySize  int    `json:"response_body_size"`
	TimeStamp         string `json:"time_stamp"`
	ResponseBody      string `json:"response_body"`
	UploadTotal       int64  `json:"upload_total"`
	DownloadTotal     int64  `json:"download_total"`
	UploadSpeed       int64  `json:"upload_speed"`
	DownloadSpeed     int64  `json:"download_speed"`
	NamelookupTimeMs  int64  `json:"namelookup_time"`
	ConnectTimeMs     int64  `json:"connect_time"`
	TlsHandshakeMs    int64  `json:"tls_handshake_time"`
	StarttransferMs   int64  `json:"starttransfer_time"`
	ElapsedTimeMs     int64  `json:"elapsed_time"`
	RedirectTimeMs    int64  `json:"redirect_time"`
}
