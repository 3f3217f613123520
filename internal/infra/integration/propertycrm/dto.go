package propertycrm

// leadRequest is the legacy CRM's contact form payload.
type leadRequest struct {
	Nome         string            `json:"nome"`
	Email        string            `json:"email,omitempty"`
	Fone         string            `json:"fone,omitempty"`
	Mensagem     string            `json:"mensagem,omitempty"`
	Assunto      string            `json:"assunto,omitempty"`
	CodigoImovel string            `json:"codigoImovel,omitempty"`
	Interesse    string            `json:"interesse,omitempty"`
	Veiculo      string            `json:"veiculo"`
	Extras       map[string]string `json:"extras,omitempty"`
}

// leadResponse: the CRM answers 200 even for business errors and puts the real
// outcome in Status.
type leadResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Codigo  int64  `json:"Codigo"`
}
