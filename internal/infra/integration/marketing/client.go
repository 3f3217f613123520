package marketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration"
)

// Client posts conversion events to the marketing-automation platform.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	entity.RequestTracker
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{},
	}
}

func (c *Client) ID() string { return entity.SinkMarketing }

func (c *Client) CreateLead(ctx context.Context, lead entity.Lead) (*entity.LeadResult, error) {
	c.Track()

	// The platform keys contacts by e-mail; without one there is nothing to send.
	if lead.Email == "" {
		return &entity.LeadResult{
			Success: false,
			Message: "marketing platform requires an e-mail",
			Errors:  []string{"email is required by the marketing platform"},
		}, nil
	}

	body, err := json.Marshal(toEvent(lead))
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/platform/conversions"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, integration.TransportError(c.ID(), err)
	}
	defer resp.Body.Close()

	switch integration.Classify(resp.StatusCode) {
	case integration.Transport:
		return nil, integration.StatusError(c.ID(), resp.StatusCode, integration.ReadBody(resp.Body))
	case integration.Rejected:
		return rejection(resp), nil
	}

	var out conversionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, integration.TransportError(c.ID(), fmt.Errorf("erro ao ler resposta: %w", err))
	}
	return &entity.LeadResult{Success: true, LeadID: out.EventUUID, Message: "conversion recorded"}, nil
}

func (c *Client) HealthCheck(ctx context.Context) entity.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/platform/health"), nil)
	if err != nil {
		return entity.HealthStatus{Message: err.Error()}
	}
	return integration.CheckEndpoint(c.http, req)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path + "?api_key=" + url.QueryEscape(c.apiKey)
}

func rejection(resp *http.Response) *entity.LeadResult {
	raw := integration.ReadBody(resp.Body)
	res := &entity.LeadResult{
		Success: false,
		Message: fmt.Sprintf("marketing platform rejected the lead (status %d)", resp.StatusCode),
	}
	var problem errorResponse
	if json.Unmarshal([]byte(raw), &problem) == nil {
		for _, e := range problem.Errors {
			res.Errors = append(res.Errors, e.ErrorType+": "+e.ErrorMessage)
		}
	}
	if len(res.Errors) == 0 && raw != "" {
		res.Errors = []string{raw}
	}
	return res
}

func toEvent(lead entity.Lead) conversionEvent {
	p := conversionPayload{
		ConversionIdentifier: conversionIdentifier(lead),
		Email:                lead.Email,
		Name:                 lead.Name,
		MobilePhone:          lead.Phone,
		AvailableForMailing:  lead.AcceptsMarketing,
		CFPropertyCode:       lead.PropertyCode,
		CFIntent:             string(lead.Intent),
		TrafficSource:        lead.MetaString("utm_source"),
		TrafficMedium:        lead.MetaString("utm_medium"),
		TrafficCampaign:      lead.MetaString("utm_campaign"),
		TrafficValue:         lead.MetaString("utm_term"),
		ClientTrackingID:     lead.MetaString("clientTrackingId"),
	}
	return conversionEvent{EventType: "CONVERSION", EventFamily: "CDP", Payload: p}
}

func conversionIdentifier(lead entity.Lead) string {
	if id := lead.MetaString("conversionIdentifier"); id != "" {
		return id
	}
	return fmt.Sprintf("site-%s-%s", lead.Source, lead.Intent)
}
