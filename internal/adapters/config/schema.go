package config

// Siftfile represents the structure of the sift.yaml configuration file.
type Siftfile struct {
	Version string              `yaml:"version"`
	Stages  map[string]StageDTO `yaml:"stages"`
}

// StageDTO represents a stage definition in the configuration.
type StageDTO struct {
	Source          string       `yaml:"source"`
	Dest            string       `yaml:"dest"`
	CacheDir        string       `yaml:"cache_dir"`
	Extensions      []string     `yaml:"extensions"`
	TargetExtension *string      `yaml:"target_extension"`
	Include         []string     `yaml:"include"`
	Exclude         []string     `yaml:"exclude"`
	InputEncoding   string       `yaml:"input_encoding"`
	OutputEncoding  string       `yaml:"output_encoding"`
	Link            string       `yaml:"link"`
	Fingerprint     string       `yaml:"fingerprint"`
	Persist         string       `yaml:"persist"`
	Transform       TransformDTO `yaml:"transform"`
}

// TransformDTO represents the transformer of a stage.
type TransformDTO struct {
	Kind        string            `yaml:"kind"`
	Search      string            `yaml:"search"`
	Replace     string            `yaml:"replace"`
	Cmd         []string          `yaml:"cmd"`
	Environment map[string]string `yaml:"environment"`
}
