package marketing

type conversionEvent struct {
	EventType   string            `json:"event_type"`
	EventFamily string            `json:"event_family"`
	Payload     conversionPayload `json:"payload"`
}

type conversionPayload struct {
	ConversionIdentifier string `json:"conversion_identifier"`
	Email                string `json:"email"`
	Name                 string `json:"name,omitempty"`
	MobilePhone          string `json:"mobile_phone,omitempty"`
	TrafficSource        string `json:"traffic_source,omitempty"`
	TrafficMedium        string `json:"traffic_medium,omitempty"`
	TrafficCampaign      string `json:"traffic_campaign,omitempty"`
	TrafficValue         string `json:"traffic_value,omitempty"`
	ClientTrackingID     string `json:"client_tracking_id,omitempty"`
	AvailableForMailing  *bool  `json:"available_for_mailing,omitempty"`
	CFPropertyCode       string `json:"cf_codigo_imovel,omitempty"`
	CFIntent             string `json:"cf_interesse,omitempty"`
}

type conversionResponse struct {
	EventUUID string `json:"event_uuid"`
}

type errorResponse struct {
	Errors []struct {
		ErrorType    string `json:"error_type"`
		ErrorMessage string `json:"error_message"`
	} `json:"errors"`
}
