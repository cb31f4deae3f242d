package assistant

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"assistant-relay/internal/config"
)

// AssistantsFile is the optional YAML document that overrides the assistant
// ids given in the environment:
//
//	assistants:
//	  augment: asst_...
//	  automation: asst_...
type AssistantsFile struct {
	Assistants map[string]string `yaml:"assistants"`
}

func LoadAssistantsFile(path string) (map[Selector]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read assistants file")
	}
	var f AssistantsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "parse assistants file")
	}
	out := make(map[Selector]string, len(f.Assistants))
	var unknown []string
	for tag, id := range f.Assistants {
		sel := Selector(strings.TrimSpace(tag))
		if !sel.Valid() {
			unknown = append(unknown, tag)
			continue
		}
		out[sel] = id
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.Errorf("assistants file %s: unknown assistant types %s", path, strings.Join(unknown, ", "))
	}
	return out, nil
}

// RegistryFromConfig builds the selector table from the environment and, when
// configured, the assistants file. File entries win over the environment.
func RegistryFromConfig(cfg config.Config) (Registry, error) {
	ids := map[Selector]string{
		SelectorAugment:    cfg.AssistantIDAugment,
		SelectorAutomation: cfg.AssistantIDAutomation,
	}
	if cfg.AssistantsFile != "" {
		fromFile, err := LoadAssistantsFile(cfg.AssistantsFile)
		if err != nil {
			return Registry{}, err
		}
		for sel, id := range fromFile {
			ids[sel] = id
		}
	}
	return NewRegistry(ids), nil
}
