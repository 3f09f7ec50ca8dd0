package pattern

// yamlPattern is the on-disk form of a single pattern.
type yamlPattern struct {
	ID       *uint    `yaml:"id,omitempty"`
	Name     string   `yaml:"name,omitempty"`
	Pattern  string   `yaml:"pattern"`
	Flags    []string `yaml:"flags,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`
}

// yamlPatternsFile is the top-level structure of a pattern YAML file.
type yamlPatternsFile struct {
	Patterns []yamlPattern `yaml:"patterns"`
}
