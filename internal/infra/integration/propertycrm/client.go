package propertycrm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration"
)

// Client talks to the legacy property-management CRM (REST + basic auth).
// It is the primary sink.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client

	entity.RequestTracker
}

// NewClient builds the client. Timeouts come from the caller's context.
func NewClient(baseURL, user, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		http:     &http.Client{},
	}
}

func (c *Client) ID() string { return entity.SinkPropertyCRM }

func (c *Client) CreateLead(ctx context.Context, lead entity.Lead) (*entity.LeadResult, error) {
	c.Track()

	jsonBody, err := json.Marshal(toRequest(lead))
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/leads", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, integration.TransportError(c.ID(), err)
	}
	defer resp.Body.Close()

	switch integration.Classify(resp.StatusCode) {
	case integration.Transport:
		return nil, integration.StatusError(c.ID(), resp.StatusCode, integration.ReadBody(resp.Body))
	case integration.Rejected:
		body := integration.ReadBody(resp.Body)
		return &entity.LeadResult{
			Success: false,
			Message: fmt.Sprintf("crm recusou o lead (status %d)", resp.StatusCode),
			Errors:  []string{body},
		}, nil
	}

	var out leadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// A 2xx we cannot read may or may not have been stored; retrying is the safe side.
		return nil, integration.TransportError(c.ID(), fmt.Errorf("erro ao ler resposta: %w", err))
	}

	if out.Status >= 500 {
		return nil, integration.StatusError(c.ID(), out.Status, out.Message)
	}
	if out.Status >= 400 {
		return &entity.LeadResult{
			Success: false,
			Message: out.Message,
			Errors:  []string{out.Message},
		}, nil
	}

	res := &entity.LeadResult{Success: true, Message: out.Message}
	if out.Codigo != 0 {
		res.LeadID = strconv.FormatInt(out.Codigo, 10)
	}
	return res, nil
}

func (c *Client) HealthCheck(ctx context.Context) entity.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return entity.HealthStatus{Message: err.Error()}
	}
	c.setHeaders(req)
	return integration.CheckEndpoint(c.http, req)
}

func (c *Client) setHeaders(req *http.Request) {
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "LeadDispatch/1.0")
}

func toRequest(lead entity.Lead) leadRequest {
	r := leadRequest{
		Nome:         lead.Name,
		Email:        lead.Email,
		Fone:         lead.Phone,
		Mensagem:     lead.Message,
		Assunto:      lead.Subject,
		CodigoImovel: lead.PropertyCode,
		Interesse:    interesse(lead.Intent),
		Veiculo:      string(lead.Source),
		Extras:       make(map[string]string),
	}
	for k, v := range lead.Metadata {
		if s, ok := v.(string); ok && s != "" {
			r.Extras[k] = s
		}
	}
	return r
}

func interesse(i entity.Intent) string {
	switch i {
	case entity.IntentBuy:
		return "Compra"
	case entity.IntentRent:
		return "Locação"
	case entity.IntentSell:
		return "Venda"
	case entity.IntentEvaluate:
		return "Avaliação"
	case entity.IntentPartnership:
		return "Parceria"
	default:
		return "Informação"
	}
}
