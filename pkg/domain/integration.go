package domain

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrInstanceNotFound    = errors.New("integration instance not found")
)

type IntegrationType string
type MetricType string
type ActionType string
type CapabilityCategory string

const (
	IntegrationType_Radarr   IntegrationType = "radarr"
	IntegrationType_Proxmox  IntegrationType = "proxmox"
	IntegrationType_Kasa     IntegrationType = "kasa"
	IntegrationType_Slack    IntegrationType = "slack"
	IntegrationType_OPNsense IntegrationType = "opnsense"
	IntegrationType_Zabbix   IntegrationType = "zabbix"
)

// Integration is the static, descriptive catalog entry for one adapter type.
// It is pure metadata: serving it performs no I/O and never fails.
type Integration struct {
	ID          IntegrationType `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`

	CredentialProperties []CredentialProperty `json:"credential_props"`
	Metrics              []IntegrationMetric  `json:"metrics"`
	Actions              []IntegrationAction  `json:"actions,omitempty"`
	Capabilities         []Capability         `json:"capabilities"`

	AuthVariant       AuthVariant `json:"auth_variant"`
	CanTestConnection bool        `json:"can_test_connection"`
}

type PropertyType string

const (
	PropertyType_String   PropertyType = "string"
	PropertyType_Password PropertyType = "password"
	PropertyType_Number   PropertyType = "number"
	PropertyType_Boolean  PropertyType = "boolean"
)

type CredentialProperty struct {
	Key         string       `json:"key"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Required    bool         `json:"required"`
	Type        PropertyType `json:"type"`
}

type IntegrationMetric struct {
	ID          string     `json:"id"`
	MetricType  MetricType `json:"metric_type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	WidgetTypes []string   `json:"widget_types"`
}

type IntegrationAction struct {
	ID          string                `json:"id"`
	ActionType  ActionType            `json:"action_type"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  []CapabilityParameter `json:"parameters,omitempty"`
}

// Capability documents a known upstream operation, implemented by the adapter
// or not. Capabilities are introspection data and are never executed
// implicitly; only IntegrationCapabilityInvoker adapters can run one, and
// only when the caller names it explicitly.
type Capability struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Method           string                `json:"method"`
	Endpoint         string                `json:"endpoint"`
	Implemented      bool                  `json:"implemented"`
	Category         CapabilityCategory    `json:"category"`
	Parameters       []CapabilityParameter `json:"parameters,omitempty"`
	DocumentationURL string                `json:"documentation_url,omitempty"`
}

type CapabilityParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

type GetDataParams struct {
	Config     IntegrationConfig
	MetricType MetricType
	Params     map[string]any
}

type ConnectionTestParams struct {
	Config IntegrationConfig
}

// ConnectionTestResult is the only outcome TestConnection produces. Every
// failure path collapses into Success=false with a category the caller can
// use to tell "bad credentials" from "host unreachable".
type ConnectionTestResult struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Category ErrorCategory  `json:"category,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

type PerformActionParams struct {
	Config     IntegrationConfig
	ActionType ActionType
	Params     map[string]any
}

type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type InvokeCapabilityParams struct {
	Config       IntegrationConfig
	CapabilityID string
	Method       string
	Endpoint     string
	Params       map[string]any
}

type CapabilityResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type CreateIntegrationParams struct {
	Config IntegrationConfig
}

type IntegrationCreator interface {
	CreateIntegration(ctx context.Context, p CreateIntegrationParams) (IntegrationExecutor, error)
}

type IntegrationExecutor interface {
	GetData(ctx context.Context, params GetDataParams) (MetricResult, error)
}

type IntegrationConnectionTester interface {
	TestConnection(ctx context.Context, params ConnectionTestParams) ConnectionTestResult
}

// IntegrationActionExecutor is an optional extension for adapters that expose
// a closed set of mutating operations. PerformAction returns a structured
// failure for unknown actions and upstream errors alike.
type IntegrationActionExecutor interface {
	PerformAction(ctx context.Context, params PerformActionParams) ActionResult
}

// IntegrationCapabilityInvoker is an optional extension for adapters that
// allow raw invocation of cataloged endpoints.
type IntegrationCapabilityInvoker interface {
	InvokeCapability(ctx context.Context, params InvokeCapabilityParams) CapabilityResult
}

type HTTPClientProvider interface {
	GetHTTPClient(config IntegrationConfig) *http.Client
}

// InstanceStore supplies the configured integration instances. Persistence
// and validation of the underlying config live outside this core.
type InstanceStore interface {
	GetInstance(id string) (IntegrationConfig, bool)
	ListInstances() []IntegrationConfig
}

type IntegrationDeps struct {
	CredentialCache    CredentialCache
	HTTPClientProvider HTTPClientProvider
}
