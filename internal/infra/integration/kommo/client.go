package kommo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration"
)

// errRejected carries a Kommo 4xx out of the contact helpers.
type errRejected struct {
	result *entity.LeadResult
}

func (e *errRejected) Error() string { return e.result.Message }

// Client is the sales CRM sink.
type Client struct {
	cfg  Config
	http *http.Client

	entity.RequestTracker
}

func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{}}
}

func (c *Client) ID() string { return entity.SinkSalesCRM }

func (c *Client) CreateLead(ctx context.Context, lead entity.Lead) (*entity.LeadResult, error) {
	c.Track()

	if c.cfg.APIToken == "" {
		return nil, integration.TransportError(c.ID(), errors.New("kommo não configurado"))
	}

	contactID, err := c.findOrCreateContact(ctx, lead)
	if err != nil {
		var rej *errRejected
		if errors.As(err, &rej) {
			return rej.result, nil
		}
		return nil, err
	}

	leadData := map[string]interface{}{
		"name": leadTitle(lead),
		"_embedded": map[string]interface{}{
			"tags": []map[string]interface{}{
				{"name": "site"},
				{"name": string(lead.Intent)},
				{"name": string(lead.Source)},
			},
			"contacts": []map[string]interface{}{
				{"id": contactID},
			},
		},
	}
	if c.cfg.PipelineID != 0 {
		leadData["pipeline_id"] = c.cfg.PipelineID
	}
	if c.cfg.StatusID != 0 {
		leadData["status_id"] = c.cfg.StatusID
	}

	var result embeddedIDs
	if err := c.post(ctx, "/leads", []map[string]interface{}{leadData}, &result); err != nil {
		var rej *errRejected
		if errors.As(err, &rej) {
			return rej.result, nil
		}
		return nil, err
	}

	if len(result.Embedded.Leads) == 0 {
		return nil, integration.TransportError(c.ID(), errors.New("lead não criado"))
	}

	return &entity.LeadResult{
		Success: true,
		LeadID:  strconv.Itoa(result.Embedded.Leads[0].ID),
		Message: "lead criado no Kommo",
	}, nil
}

func (c *Client) HealthCheck(ctx context.Context) entity.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/account", nil)
	if err != nil {
		return entity.HealthStatus{Message: err.Error()}
	}
	c.addAuthHeaders(req)
	return integration.CheckEndpoint(c.http, req)
}

func (c *Client) findOrCreateContact(ctx context.Context, lead entity.Lead) (int, error) {
	query := lead.Phone
	if query == "" {
		query = lead.Email
	}
	if contactID, err := c.findContact(ctx, query); err != nil {
		return 0, err
	} else if contactID > 0 {
		return contactID, nil
	}
	return c.createContact(ctx, lead)
}

// findContact returns 0 when no contact matches.
func (c *Client) findContact(ctx context.Context, query string) (int, error) {
	endpoint := fmt.Sprintf("%s/contacts?query=%s", c.cfg.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	c.addAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, integration.TransportError(c.ID(), err)
	}
	defer resp.Body.Close()

	// Kommo answers 204 with an empty body when nothing matches.
	if resp.StatusCode == http.StatusNoContent {
		return 0, nil
	}
	if err := c.checkStatus(resp); err != nil {
		return 0, err
	}

	var result embeddedIDs
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, integration.TransportError(c.ID(), fmt.Errorf("erro ao ler contatos: %w", err))
	}
	if len(result.Embedded.Contacts) > 0 {
		return result.Embedded.Contacts[0].ID, nil
	}
	return 0, nil
}

func (c *Client) createContact(ctx context.Context, lead entity.Lead) (int, error) {
	var fields []map[string]interface{}
	if lead.Phone != "" {
		fields = append(fields, map[string]interface{}{
			"field_code": "PHONE",
			"values":     []map[string]interface{}{{"value": lead.Phone, "enum_code": "WORK"}},
		})
	}
	if lead.Email != "" {
		fields = append(fields, map[string]interface{}{
			"field_code": "EMAIL",
			"values":     []map[string]interface{}{{"value": lead.Email, "enum_code": "WORK"}},
		})
	}

	contactData := []map[string]interface{}{
		{"name": lead.Name, "custom_fields_values": fields},
	}

	var result embeddedIDs
	if err := c.post(ctx, "/contacts", contactData, &result); err != nil {
		return 0, err
	}
	if len(result.Embedded.Contacts) == 0 {
		return 0, integration.TransportError(c.ID(), errors.New("erro ao obter ID do contato criado"))
	}
	return result.Embedded.Contacts[0].ID, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("erro ao gerar json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.addAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return integration.TransportError(c.ID(), err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return integration.TransportError(c.ID(), fmt.Errorf("erro ao ler resposta: %w", err))
	}
	return nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch integration.Classify(resp.StatusCode) {
	case integration.Accepted:
		return nil
	case integration.Transport:
		return integration.StatusError(c.ID(), resp.StatusCode, integration.ReadBody(resp.Body))
	}
	return &errRejected{result: rejection(resp.StatusCode, resp.Body)}
}

func rejection(status int, body io.Reader) *entity.LeadResult {
	raw := integration.ReadBody(body)
	res := &entity.LeadResult{
		Success: false,
		Message: fmt.Sprintf("kommo recusou o lead (status %d)", status),
	}

	var problem errorResponse
	if json.Unmarshal([]byte(raw), &problem) == nil {
		for _, ve := range problem.ValidationErrors {
			for _, e := range ve.Errors {
				res.Errors = append(res.Errors, e.Path+": "+e.Detail)
			}
		}
		if len(res.Errors) == 0 && problem.Detail != "" {
			res.Errors = []string{problem.Detail}
		}
	}
	if len(res.Errors) == 0 && raw != "" {
		res.Errors = []string{raw}
	}
	return res
}

func leadTitle(lead entity.Lead) string {
	if lead.PropertyCode != "" {
		return fmt.Sprintf("%s - %s", lead.Name, lead.PropertyCode)
	}
	return fmt.Sprintf("%s - %s", lead.Name, lead.Intent)
}

func (c *Client) addAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIToken))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
