package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models armada.yml.
type Config struct {
	Instance struct {
		ID   string `yaml:"id"`
		Kind string `yaml:"kind"`
	} `yaml:"instance"`
	Documents struct {
		Catalog map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"catalog"`
	} `yaml:"documents"`
	Checklists struct {
		// Templates maps a vehicle category to the equipment items a
		// field officer is expected to tick during inspection.
		Templates map[string][]string `yaml:"templates"`
	} `yaml:"checklists"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
	} `yaml:"auth"`
	Webhooks []Webhook `yaml:"webhooks"`
}

type Webhook struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Secret string   `yaml:"secret"`
	Events []string `yaml:"events"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with armada config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return fmt.Errorf("config.instance.id is required")
	}
	if c.Instance.Kind != "vehicle-inspection" {
		return fmt.Errorf("config.instance.kind must be 'vehicle-inspection'")
	}
	for kind, doc := range c.Documents.Catalog {
		if kind == "" {
			return fmt.Errorf("config.documents.catalog contains empty kind")
		}
		if doc.Description == "" {
			return fmt.Errorf("document kind %s has empty description", kind)
		}
	}
	for category, items := range c.Checklists.Templates {
		if category == "" {
			return fmt.Errorf("config.checklists.templates contains empty category")
		}
		for _, item := range items {
			if item == "" {
				return fmt.Errorf("checklist template %s has empty item", category)
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.Name == "" {
			return fmt.Errorf("webhook %d has empty name", i)
		}
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// ChecklistTemplate returns the equipment checklist for a category, or nil.
func (c *Config) ChecklistTemplate(category string) []string {
	if c.Checklists.Templates == nil {
		return nil
	}
	return c.Checklists.Templates[category]
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "armada.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(instanceID string) string {
	return fmt.Sprintf(defaultTemplate, instanceID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for an instance.
func Default(instanceID string) *Config {
	var cfg Config
	cfg.Instance.ID = instanceID
	cfg.Instance.Kind = "vehicle-inspection"
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, instanceID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `instance:
  id: %s
  kind: vehicle-inspection

documents:
  catalog:
    stnk:
      description: "Vehicle registration certificate (STNK)"
    kir:
      description: "Periodic roadworthiness test (KIR)"
    tax:
      description: "Annual vehicle tax receipt"
    service:
      description: "Last workshop service record"

checklists:
  templates:
    TOW:
      - towing_hook
      - wheel_chocks
      - warning_triangle
      - fire_extinguisher
      - first_aid_kit
    PLAZA:
      - traffic_cones
      - handheld_radio
      - rotating_beacon
      - warning_triangle
      - fire_extinguisher
    SECURITY:
      - handheld_radio
      - siren
      - emergency_lights
      - flashlight
      - fire_extinguisher
    RESCUE:
      - medical_kit
      - stretcher
      - oxygen_tank
      - hydraulic_cutter
      - fire_extinguisher

auth:
  jwt_secret: ""
  allow_legacy_actor_header: false

webhooks: []
`
