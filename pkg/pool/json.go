package pool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// ConvertJSONFileToConfig opens a file.json and overlays it on DefaultPoolConfig.
func ConvertJSONFileToConfig(fileNamePath string) (*PoolConfig, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := DefaultPoolConfig()
	var json = jsoniter.ConfigFastest
	if err = json.Unmarshal(byteValue, config); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

// ConvertYAMLFileToConfig opens a file.yaml and overlays it on DefaultPoolConfig.
func ConvertYAMLFileToConfig(fileNamePath string) (*PoolConfig, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := DefaultPoolConfig()
	if err = yaml.Unmarshal(byteValue, config); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

// ConvertFileToConfig picks the JSON or YAML reader from the file extension.
func ConvertFileToConfig(fileNamePath string) (*PoolConfig, error) {
	switch strings.ToLower(filepath.Ext(fileNamePath)) {
	case ".json":
		return ConvertJSONFileToConfig(fileNamePath)
	case ".yaml", ".yml":
		return ConvertYAMLFileToConfig(fileNamePath)
	default:
		return nil, fmt.Errorf("%w: unsupported config file %q", ErrInvalidConfig, fileNamePath)
	}
}
