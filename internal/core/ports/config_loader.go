package ports

import "go.trai.ch/sift/internal/core/domain"

//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks

// ConfigLoader defines the interface for loading the project configuration.
type ConfigLoader interface {
	// Load reads and validates the configuration file at path.
	Load(path string) (*domain.Project, error)
}
