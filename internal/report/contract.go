// Package report holds the data model that flows through a compliance
// evaluation: the input Contract, the per-policy decision results, and
// the EvaluationReport produced at the end of an orchestrator run.
//
// Grounded field-for-field on original_source/aicertify/models/{contract,
// report,evaluation,opa_results}.py, rendered in the json-tagged,
// helper-method style of internal/policy/models.go, with
// go-playground/validator/v10 struct tags per models/task.go.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// ModelInfo describes the AI model under evaluation.
type ModelInfo struct {
	ModelName    string         `json:"model_name" validate:"required"`
	ModelVersion string         `json:"model_version,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Interaction captures one user/AI exchange supplied in a contract.
type Interaction struct {
	InteractionID uuid.UUID      `json:"interaction_id"`
	Timestamp     time.Time      `json:"timestamp"`
	InputText     string         `json:"input_text" validate:"required"`
	OutputText    string         `json:"output_text" validate:"required"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Contract is the external interface other systems use to submit
// interaction data for compliance evaluation.
type Contract struct {
	ContractID         uuid.UUID         `json:"contract_id"`
	ApplicationName    string            `json:"application_name" validate:"required"`
	ModelInfo          ModelInfo         `json:"model_info" validate:"required"`
	Interactions       []Interaction     `json:"interactions" validate:"required,min=1,dive"`
	FinalOutput        string            `json:"final_output,omitempty"`
	Context            map[string]any    `json:"context,omitempty"`
	ComplianceContext  map[string]any    `json:"compliance_context,omitempty"`
}

// domainRequirements mirrors DOMAIN_REQUIREMENTS: context keys a
// contract must carry when context["domain"] names a regulated domain.
var domainRequirements = map[string][]string{
	"healthcare": {"risk_documentation", "patient_data"},
	"finance":    {"risk_documentation", "customer_data"},
}

// NewContract builds a contract with generated IDs and timestamps
// filled in, mirroring create_contract.
func NewContract(appName string, model ModelInfo, interactions []Interaction) *Contract {
	for i := range interactions {
		if interactions[i].InteractionID == uuid.Nil {
			interactions[i].InteractionID = uuid.New()
		}
		if interactions[i].Timestamp.IsZero() {
			interactions[i].Timestamp = time.Now().UTC()
		}
	}
	return &Contract{
		ContractID:   uuid.New(),
		ApplicationName: appName,
		ModelInfo:    model,
		Interactions: interactions,
	}
}

// Get performs dictionary-style lookup across context and
// compliance_context, mirroring AiCertifyContract.get.
func (c *Contract) Get(key string, def any) any {
	if v, ok := c.Context[key]; ok {
		return v
	}
	if v, ok := c.ComplianceContext[key]; ok {
		return v
	}
	return def
}

// Validate checks struct tags and the domain-specific requirements
// mirroring validate_domain_specific / validate_contract.
func (c *Contract) Validate() error {
	if err := validate.Struct(c); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, fmt.Sprintf("field %q failed rule %q", e.StructNamespace(), e.Tag()))
		}
		return fmt.Errorf("contract validation failed: %s", strings.Join(messages, "; "))
	}

	domain, _ := c.Context["domain"].(string)
	if required, ok := domainRequirements[domain]; ok {
		for _, key := range required {
			if _, present := c.Context[key]; !present {
				return fmt.Errorf("%s contracts must include %q", domain, key)
			}
		}
	}
	return nil
}

// AsInputDocument renders the contract into the plain map[string]any
// shape the decision engine driver serializes to the policy engine's
// input document.
func (c *Contract) AsInputDocument() map[string]any {
	interactions := make([]map[string]any, 0, len(c.Interactions))
	for _, it := range c.Interactions {
		interactions = append(interactions, map[string]any{
			"interaction_id": it.InteractionID.String(),
			"timestamp":      it.Timestamp,
			"input_text":     it.InputText,
			"output_text":    it.OutputText,
			"metadata":       it.Metadata,
		})
	}
	return map[string]any{
		"contract_id":      c.ContractID.String(),
		"application_name": c.ApplicationName,
		"model_info": map[string]any{
			"model_name":    c.ModelInfo.ModelName,
			"model_version": c.ModelInfo.ModelVersion,
			"metadata":      c.ModelInfo.Metadata,
		},
		"interactions":       interactions,
		"final_output":       c.FinalOutput,
		"context":            c.Context,
		"compliance_context": c.ComplianceContext,
	}
}
