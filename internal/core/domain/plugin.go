package domain

// MenuItem is a pre-built navigation entry a plugin may declare.
type MenuItem struct {
	Label string `json:"label"`
	Link  string `json:"link"`
}

// PluginDescriptor is the static metadata of a registered plugin.
type PluginDescriptor struct {
	Name     string    `json:"name"`
	Service  string    `json:"service"`
	Label    string    `json:"label"`
	Priority int       `json:"priority"`
	Icon     string    `json:"icon,omitempty"`
	Menu     *MenuItem `json:"menu,omitempty"`
	// BaseEntity links the plugin to an entity type for search.
	BaseEntity string `json:"base_entity,omitempty"`
}

// Keys of the settings store read by the installation check.
const (
	SettingCloudToken  = "cloud-token"
	SettingProjectName = "project-name"
)

// HealthReport describes whether the environment is configured enough to
// serve the administration.
type HealthReport struct {
	DatabaseOK  bool `json:"database_ok"`
	CloudLinked bool `json:"cloud_linked"`
	BasicConfig bool `json:"basic_config"`
}

// Ready reports whether every installation requirement holds.
func (h HealthReport) Ready() bool {
	return h.DatabaseOK && h.CloudLinked && h.BasicConfig
}
