package compensacao

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmdatafocus/compensacao_backend/config"
	"github.com/mmdatafocus/compensacao_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("compensacao")

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// DiagnosticsAPI is the remote side: the anomaly query plus both
// remediation endpoints.
type DiagnosticsAPI interface {
	QueryAnomalies(ctx context.Context, q AnomalyQuery) (AnomaliesResponse, error)
	Reprocess(ctx context.Context, depositID int64) (ReprocessResponse, error)
	ManualOverride(ctx context.Context, req OverrideRequest) (OverrideResponse, error)
}

type HTTPClient struct {
	baseURL       string
	queryPath     string
	reprocessPath string
	overridePath  string
	serviceToken  string
	http          *http.Client
}

func NewHTTPClient(settings *config.Settings, httpClient *http.Client) (*HTTPClient, error) {
	if settings == nil {
		return nil, errors.New("settings are required")
	}
	if strings.TrimSpace(settings.DiagnosticsBaseURL) == "" {
		return nil, errors.New("diagnostics base url is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: settings.HTTPTimeout}
	}
	return &HTTPClient{
		baseURL:       strings.TrimRight(settings.DiagnosticsBaseURL, "/"),
		queryPath:     settings.QueryPath,
		reprocessPath: settings.ReprocessPath,
		overridePath:  settings.OverridePath,
		serviceToken:  settings.ServiceToken,
		http:          httpClient,
	}, nil
}

func (c *HTTPClient) QueryAnomalies(ctx context.Context, q AnomalyQuery) (AnomaliesResponse, error) {
	params := url.Values{}
	params.Set("accountNumber", q.AccountNumber)
	if q.StartDate != "" {
		params.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("endDate", q.EndDate)
	}

	var out AnomaliesResponse
	err := c.do(ctx, "compensacao.query_anomalies", http.MethodGet, c.queryPath, params, nil, &out)
	return out, err
}

func (c *HTTPClient) Reprocess(ctx context.Context, depositID int64) (ReprocessResponse, error) {
	var out ReprocessResponse
	err := c.do(ctx, "compensacao.reprocess", http.MethodPost, c.reprocessPath, nil, ReprocessRequest{DepositID: depositID}, &out)
	return out, err
}

func (c *HTTPClient) ManualOverride(ctx context.Context, req OverrideRequest) (OverrideResponse, error) {
	var out OverrideResponse
	err := c.do(ctx, "compensacao.manual_override", http.MethodPost, c.overridePath, nil, req, &out)
	return out, err
}

// do is a single attempt. Network errors and 5xx are transport failures. A
// 4xx with a regular envelope is decoded like a 2xx, one with only a
// message is a logical failure. A 2xx that does not decode is an
// unexpected shape.
func (c *HTTPClient) do(ctx context.Context, spanName, method, path string, params url.Values, body any, out any) error {
	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.url", endpoint))

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fail(span, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fail(span, transportError(err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
		req.Header.Set("x-correlation-id", cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(span, transportError(err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail(span, transportError(err))
	}

	switch {
	case resp.StatusCode >= 500:
		return fail(span, transportErrorf("diagnostics api error %d: %s", resp.StatusCode, snippet(respBody)))
	case resp.StatusCode >= 400:
		var envelope struct {
			Success *bool  `json:"success"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(respBody, &envelope); err == nil {
			// a regular envelope: let the caller read success/details from it
			if envelope.Success != nil && json.Unmarshal(respBody, out) == nil {
				return nil
			}
			if strings.TrimSpace(envelope.Message) != "" {
				return fail(span, logicalError(envelope.Message))
			}
		}
		return fail(span, transportErrorf("diagnostics api error %d: %s", resp.StatusCode, snippet(respBody)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fail(span, transportErrorf("diagnostics api unexpected status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fail(span, unexpectedShapeError("decode %s response: %v", spanName, err))
	}
	return nil
}

// bearerToken forwards the operator's session token when there is one and
// falls back to the service token.
func (c *HTTPClient) bearerToken(ctx context.Context) string {
	if token, ok := utils.GetTokenFromContext(ctx); ok && token != "" {
		return token
	}
	return c.serviceToken
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
