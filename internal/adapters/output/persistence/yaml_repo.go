package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"salus-bridge/internal/domain/model"

	"gopkg.in/yaml.v3"
)

// YAMLConfigRepository reads the optional bridge configuration file. A
// missing file yields the defaults. It holds no state besides the path, so
// concurrent Gets are safe.
type YAMLConfigRepository struct {
	filepath string
}

func NewYAMLConfigRepository(filepath string) *YAMLConfigRepository {
	return &YAMLConfigRepository{filepath: filepath}
}

func (r *YAMLConfigRepository) Get(ctx context.Context) (*model.Config, error) {
	cfg := model.DefaultConfig()
	data, err := os.ReadFile(r.filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidConfig, r.filepath, err)
	}
	return cfg, nil
}
