package kommo

type Config struct {
	BaseURL    string // ex: https://imobiliaria.kommo.com/api/v4
	APIToken   string
	PipelineID int
	StatusID   int
}

type embeddedIDs struct {
	Embedded struct {
		Leads []struct {
			ID int `json:"id"`
		} `json:"leads"`
		Contacts []struct {
			ID int `json:"id"`
		} `json:"contacts"`
	} `json:"_embedded"`
}

// errorResponse is Kommo's problem+json body on 4xx.
type errorResponse struct {
	Title            string `json:"title"`
	Detail           string `json:"detail"`
	ValidationErrors []struct {
		Errors []struct {
			Path   string `json:"path"`
			Detail string `json:"detail"`
		} `json:"errors"`
	} `json:"validation-errors"`
}
