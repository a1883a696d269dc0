package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wesleyorama2/flowgen/internal/flowgen/flow"
	"github.com/wesleyorama2/flowgen/internal/flowgen/httpclient"
	"github.com/wesleyorama2/flowgen/internal/flowgen/kv"
)

const metricsKey = "load_gen_metrics"

// timestampLayout renders a local-time timestamp with microsecond
// resolution, matching the original source's "%Y-%m-%d %H:%M:%S.%f".
const timestampLayout = "2006-01-02 15:04:05.000000"

// HttpClient is the capability HttpRequest needs from the HTTP mechanics
// layer.
type HttpClient interface {
	Do(ctx context.Context, req httpclient.Request, timeout time.Duration) (*httpclient.Result, error)
}

// HttpRequest issues one HTTP call described by params, publishes its
// outcome into localKV, and — when the global KV is already collecting
// metrics (its load_gen_metrics key exists) — appends an HttpMetric to it.
// remainingTime bounds the request's effective timeout when hasRemaining is
// true.
func HttpRequest(ctx context.Context, client HttpClient, params *flow.HttpParams, remainingTime time.Duration, hasRemaining bool, globalKV, localKV *kv.Store) (flow.FunctionStatus, error) {
	collecting, err := globalKV.Exists(ctx, metricsKey)
	if err != nil {
		return flow.Failed, fmt.Errorf("steps: checking metrics collection: %w", err)
	}

	timeout := effectiveTimeout(params.TimeoutSeconds(), remainingTime, hasRemaining)
	timestamp := time.Now().Format(timestampLayout)

	headers := make(http.Header)
	for _, h := range params.Headers {
		headers.Add(h.Name, h.Value)
	}

	body, contentType, err := requestBody(params.Body)
	if err != nil {
		return flow.Failed, fmt.Errorf("steps: building request body: %w", err)
	}

	req := httpclient.Request{
		Method:        method(params.Method),
		URL:           params.URL,
		Headers:       headers,
		Body:          body,
		ContentType:   contentType,
		RedirectLimit: params.RedirectLimitOrDefault(),
	}

	result, err := client.Do(ctx, req, timeout)
	if err != nil && result == nil {
		return transportFailure(ctx, localKV, globalKV, collecting, params, timestamp, err)
	}
	if err != nil {
		return bodyReadFailure(ctx, localKV, globalKV, collecting, params, timestamp, result, err)
	}

	return responseSuccess(ctx, localKV, globalKV, collecting, params, timestamp, result)
}

func method(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return m
}

// requestBody renders an HttpBody into wire bytes and, where the encoding
// implies one, the Content-Type header that describes them (boundary for
// multipart, the urlencoded MIME type). Request.Headers still wins if the
// caller set Content-Type explicitly.
func requestBody(body flow.HttpBody) ([]byte, string, error) {
	switch body.Kind {
	case flow.BodyRaw:
		return []byte(body.Raw), "", nil
	case flow.BodyFormUrlEncoded:
		values := make(url.Values, len(body.FormUrlEncoded))
		for _, f := range body.FormUrlEncoded {
			values.Add(f.Name, f.Value)
		}
		return []byte(values.Encode()), "application/x-www-form-urlencoded", nil
	case flow.BodyFormData:
		return multipartBody(body.FormData)
	case flow.BodyBinaryOctetFilePath:
		data, err := os.ReadFile(body.FilePath)
		if err != nil {
			return nil, "", fmt.Errorf("reading binary body file %q: %w", body.FilePath, err)
		}
		return data, "application/octet-stream", nil
	default:
		return nil, "", nil
	}
}

// multipartBody writes each form field in order, uploading file-backed
// values from disk under their declared content type.
func multipartBody(fields []flow.FormDataField) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, field := range fields {
		if !field.Value.IsFile {
			if err := writer.WriteField(field.Name, field.Value.Str); err != nil {
				return nil, "", fmt.Errorf("writing form field %q: %w", field.Name, err)
			}
			continue
		}

		data, err := os.ReadFile(field.Value.FilePath)
		if err != nil {
			return nil, "", fmt.Errorf("reading form file %q: %w", field.Value.FilePath, err)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field.Name, filepath.Base(field.Value.FilePath)))
		contentType := field.Value.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("creating form part %q: %w", field.Name, err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("writing form part %q: %w", field.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalizing multipart body: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func effectiveTimeout(paramTimeout uint64, remaining time.Duration, hasRemaining bool) time.Duration {
	base := time.Duration(paramTimeout) * time.Second
	if !hasRemaining {
		return base
	}
	if remaining < base {
		return remaining
	}
	return base
}

func transportFailure(ctx context.Context, localKV, globalKV *kv.Store, collecting bool, params *flow.HttpParams, timestamp string, transportErr error) (flow.FunctionStatus, error) {
	errMsg := fmt.Sprintf("Request failed: %s", transportErr)

	if err := localKV.Set(ctx, "http_response", errMsg); err != nil {
		return flow.Failed, err
	}
	if err := localKV.Set(ctx, "http_status_code", 0); err != nil {
		return flow.Failed, err
	}
	if err := localKV.Set(ctx, "http_response_headers", "{}"); err != nil {
		return flow.Failed, err
	}

	if collecting {
		metric := flow.HttpMetric{
			URL:          params.URL,
			HttpVerb:     method(params.Method),
			StatusCode:   0,
			TimeStamp:    timestamp,
			ResponseBody: errMsg,
		}
		if err := appendMetric(ctx, globalKV, metric); err != nil {
			return flow.Failed, err
		}
	}

	return flow.Failed, nil
}

func bodyReadFailure(ctx context.Context, localKV, globalKV *kv.Store, collecting bool, params *flow.HttpParams, timestamp string, result *httpclient.Result, readErr error) (flow.FunctionStatus, error) {
	headerJSON, err := encodeHeaders(result.Headers)
	if err != nil {
		headerJSON = "{}"
	}
	errMsg := readErr.Error()

	if err := localKV.Set(ctx, "http_response", errMsg); err != nil {
		return flow.Failed, err
	}
	if err := localKV.Set(ctx, "http_status_code", result.StatusCode); err != nil {
		return flow.Failed, err
	}
	if err := localKV.Set(ctx, "http_response_headers", headerJSON); err != nil {
		return flow.Failed, err
	}

	if collecting {
		metric := flow.HttpMetric{
			URL:          params.URL,
			HttpVerb:     method(params.Method),
			StatusCode:   result.StatusCode,
			TimeStamp:    timestamp,
			ResponseBody: errMsg,
		}
		if err := appendMetric(ctx, globalKV, metric); err != nil {
			return flow.Failed, err
		}
	}

	return flow.Failed, nil
}

func responseSuccess(ctx context.Context, localKV, globalKV *kv.Store, collecting bool, params *flow.HttpParams, timestamp string, result *httpclient.Result) (flow.FunctionStatus, error) {
	headerJSON, err := encodeHeaders(result.Headers)
	if err != nil {
		return flow.Failed, fmt.Errorf("steps: encoding response headers: %w", err)
	}

	if err := localKV.Set(ctx, "http_response", string(result.Body)); err != nil {
		return flow.Failed, err
	}
	if err := localKV.Set(ctx, "http_status_code", result.StatusCode); err != nil {
		return flow.Failed, err
	}
	if err := localKV.Set(ctx, "http_response_headers", headerJSON); err != nil {
		return flow.Failed, err
	}

	if collecting {
		responseBody := ""
		if result.StatusCode < 200 || result.StatusCode > 299 {
			responseBody = string(result.Body)
		}

		metric := flow.HttpMetric{
			URL:              params.URL,
			HttpVerb:         method(params.Method),
			StatusCode:       result.StatusCode,
			ResponseBodySize: len(result.Body),
			TimeStamp:        timestamp,
			ResponseBody:     responseBody,
			UploadTotal:      result.UploadBytes,
			DownloadTotal:    result.DownloadBytes,
			UploadSpeed:      speed(result.UploadBytes, result.Timing.Elapsed),
			DownloadSpeed:    speed(result.DownloadBytes, result.Timing.Elapsed),
			NamelookupTimeMs: result.Timing.NamelookupTime.Milliseconds(),
			ConnectTimeMs:    result.Timing.ConnectTime.Milliseconds(),
			TlsHandshakeMs:   result.Timing.TLSHandshake.Milliseconds(),
			StarttransferMs:  result.Timing.StartTransfer.Milliseconds(),
			ElapsedTimeMs:    result.Timing.Elapsed.Milliseconds(),
			RedirectTimeMs:   result.Timing.Redirect.Milliseconds(),
		}
		if err := appendMetric(ctx, globalKV, metric); err != nil {
			return flow.Failed, err
		}
	}

	return flow.Passed, nil
}

func speed(bytes int64, elapsed time.Duration) int64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return int64(float64(bytes) / seconds)
}

func encodeHeaders(h http.Header) (string, error) {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		if !utf8.ValidString(value) {
			continue
		}
		out[strings.ToLower(name)] = value
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func appendMetric(ctx context.Context, globalKV *kv.Store, metric flow.HttpMetric) error {
	return globalKV.Append(ctx, metricsKey, metric)
}
