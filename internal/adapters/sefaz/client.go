package sefaz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/beevik/etree"

	infractx "gestaoplus/ms_nfse_core/internal/infrastructure/context"
	"gestaoplus/ms_nfse_core/internal/core/settings"
)

// Fixed endpoints of the São Paulo lot service.
const (
	EndpointHomologation = "https://nfeh.prefeitura.sp.gov.br/ws/lotenfe.asmx"
	EndpointProduction   = "https://nfe.prefeitura.sp.gov.br/ws/lotenfe.asmx"
)

// Endpoint maps the issuer's configured environment to the authority
// URL.
func Endpoint(env settings.Environment) string {
	if env == settings.EnvironmentProduction {
		return EndpointProduction
	}
	return EndpointHomologation
}

// Operation identifies one SOAP operation of the lot service.
type Operation struct {
	Name       string
	SOAPAction string
	RequestTag string
}

var (
	OpEnvioLoteRPS = Operation{
		Name:       "EnvioLoteRPS",
		SOAPAction: "http://www.prefeitura.sp.gov.br/nfe/ws/envioLoteRPS",
		RequestTag: "EnvioLoteRPSRequest",
	}
	OpCancelamentoNFe = Operation{
		Name:       "CancelamentoNFe",
		SOAPAction: "http://www.prefeitura.sp.gov.br/nfe/ws/cancelamentoNFe",
		RequestTag: "CancelamentoNFeRequest",
	}
	OpConsultaNFe = Operation{
		Name:       "ConsultaNFe",
		SOAPAction: "http://www.prefeitura.sp.gov.br/nfe/ws/consultaNFe",
		RequestTag: "ConsultaNFeRequest",
	}
)

// ClientConfig holds transport knobs for the authority client.
type ClientConfig struct {
	// Endpoint is the full service URL. Resolve it with Endpoint()
	// from the issuer's environment; tests point it at a stub server.
	Endpoint string

	// Timeout bounds the whole round trip. The network call is the
	// only long-latency operation in the workflow and must never hang
	// the invoking request.
	Timeout time.Duration

	SchemaVersion   string
	MaxConnsPerHost int
}

// Client issues SOAP 1.1 calls to the municipal endpoint. The signed
// request document travels as an escaped string inside MensagemXML,
// which is why responses need two parse passes on the way back.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	breaker    *CircuitBreaker
	log        *slog.Logger
}

func NewClient(cfg ClientConfig, breaker *CircuitBreaker, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = 10
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = "1"
	}

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		breaker: breaker,
		log:     log,
	}
}

// Send posts the signed message under the given operation and returns
// the raw response body. The body is returned alongside ErrHTTPStatus
// so the caller can log what the authority actually answered.
func (c *Client) Send(ctx context.Context, op Operation, messageXML string) ([]byte, error) {
	envelope, err := c.buildEnvelope(op, messageXML)
	if err != nil {
		return nil, err
	}

	var body []byte
	call := func() error {
		var callErr error
		body, callErr = c.post(ctx, op, envelope)
		return callErr
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	return body, err
}

func (c *Client) buildEnvelope(op Operation, messageXML string) ([]byte, error) {
	doc := etree.NewDocument()
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", "http://schemas.xmlsoap.org/soap/envelope/")
	env.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	env.CreateAttr("xmlns:xsd", "http://www.w3.org/2001/XMLSchema")

	reqEl := env.CreateElement("soap:Body").CreateElement(op.RequestTag)
	reqEl.CreateAttr("xmlns", Namespace)
	reqEl.CreateElement("VersaoSchema").SetText(c.cfg.SchemaVersion)
	// etree escapes the document here; the authority unescapes it
	// server-side.
	reqEl.CreateElement("MensagemXML").SetText(messageXML)

	doc.SetRoot(env)
	envelope, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("build SOAP envelope: %w", err)
	}
	return envelope, nil
}

func (c *Client) post(ctx context.Context, op Operation, envelope []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("create authority request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml;charset=UTF-8")
	req.Header.Set("SOAPAction", op.SOAPAction)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("authority call failed",
			"operation", op.Name,
			"endpoint", c.cfg.Endpoint,
			"duration_ms", time.Since(start).Milliseconds(),
			"correlation_id", infractx.GetCorrelationID(ctx),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrNetwork, err)
	}

	c.log.Info("authority call completed",
		"operation", op.Name,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_bytes", len(body),
		"correlation_id", infractx.GetCorrelationID(ctx),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}
	return body, nil
}
