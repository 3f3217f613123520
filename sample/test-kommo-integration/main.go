package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/xavierca1/lead-dispatch/internal/config"
	"github.com/xavierca1/lead-dispatch/internal/entity"
	"github.com/xavierca1/lead-dispatch/internal/infra/integration/kommo"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("❌ Erro ao carregar configuração: %v", err)
	}

	if cfg.Kommo.URL == "" || cfg.Kommo.APIToken == "" {
		log.Fatal("❌ KOMMO_URL e KOMMO_API_TOKEN devem estar configurados no .env")
	}

	client := kommo.NewClient(kommo.Config{
		BaseURL:    cfg.Kommo.URL,
		APIToken:   cfg.Kommo.APIToken,
		PipelineID: cfg.Kommo.PipelineID,
		StatusID:   cfg.Kommo.StatusID,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Kommo.Timeout)
	defer cancel()

	health := client.HealthCheck(ctx)
	fmt.Printf("🩺 Health: healthy=%t latency=%dms %s\n", health.Healthy, health.LatencyMs, health.Message)

	lead := entity.Lead{
		Name:         "Joao Teste da Silva",
		Phone:        "+5547999767638",
		Email:        "joao.teste@email.com",
		Message:      "Tenho interesse no apartamento, podem me ligar?",
		PropertyCode: "AP-1234",
		Intent:       entity.IntentBuy,
		Source:       entity.SourceSite,
		Metadata: map[string]any{
			entity.MetaEnrichedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}

	fmt.Println("🔄 Criando lead no Kommo...")
	fmt.Printf("📋 Dados:\n")
	fmt.Printf("   Nome: %s\n", lead.Name)
	fmt.Printf("   Telefone: %s\n", lead.Phone)
	fmt.Printf("   Email: %s\n", lead.Email)
	fmt.Printf("   Imóvel: %s\n\n", lead.PropertyCode)

	result, err := client.CreateLead(ctx, lead)
	if err != nil {
		log.Fatalf("Erro de transporte ao criar lead no Kommo: %v", err)
	}
	if !result.Success {
		log.Fatalf("Kommo recusou o lead: %s %v", result.Message, result.Errors)
	}

	accountID := os.Getenv("KOMMO_ACCOUNT_ID")
	if accountID == "" {
		accountID = "imobiliaria"
	}

	fmt.Printf("Lead criado com sucesso no Kommo! \n")
	fmt.Printf(" ID do Lead: #%s\n", result.LeadID)
	fmt.Printf(" Link: https://%s.kommo.com/leads/detail/%s\n", accountID, result.LeadID)
}
