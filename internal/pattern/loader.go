package pattern

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"coolcar/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var builtinYAML []byte

type patternFile struct {
	Patterns []patternSpec `yaml:"patterns"`
}

type patternSpec struct {
	Name      string   `yaml:"name"`
	Trigger   string   `yaml:"trigger"`
	Responses []string `yaml:"responses"`
	FollowUp  string   `yaml:"followUp"`
	Context   string   `yaml:"context"`
	Urgency   string   `yaml:"urgency"`
}

// Builtin returns the patterns shipped with the binary.
func Builtin() ([]domain.BotPattern, error) {
	return Parse(builtinYAML)
}

// Parse decodes a YAML pattern table and compiles its triggers.
func Parse(data []byte) ([]domain.BotPattern, error) {
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse patterns: %w", err)
	}
	out := make([]domain.BotPattern, 0, len(f.Patterns))
	for i, s := range f.Patterns {
		p, err := s.compile()
		if err != nil {
			return nil, fmt.Errorf("pattern %d (%s): %w", i, s.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s patternSpec) compile() (domain.BotPattern, error) {
	if s.Trigger == "" {
		return domain.BotPattern{}, fmt.Errorf("empty trigger")
	}
	if len(s.Responses) == 0 {
		return domain.BotPattern{}, fmt.Errorf("no responses")
	}
	re, err := regexp.Compile(s.Trigger)
	if err != nil {
		return domain.BotPattern{}, fmt.Errorf("compile trigger: %w", err)
	}
	ctx, err := domain.ParseContextTag(s.Context)
	if err != nil {
		return domain.BotPattern{}, err
	}
	urg, err := domain.ParseUrgency(s.Urgency)
	if err != nil {
		return domain.BotPattern{}, err
	}
	return domain.BotPattern{
		Name:      s.Name,
		Trigger:   re,
		Responses: append([]string(nil), s.Responses...),
		FollowUp:  s.FollowUp,
		Context:   ctx,
		Urgency:   urg,
	}, nil
}

// LoadFromDirectory reads every .yaml/.yml file in dir in name order. A
// missing directory yields no patterns.
func LoadFromDirectory(dir string, logger *slog.Logger) ([]domain.BotPattern, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		logger.Debug("patterns directory does not exist, skipping", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read patterns dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var out []domain.BotPattern
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		ps, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		logger.Info("loaded custom patterns", "path", path, "count", len(ps))
		out = append(out, ps...)
	}
	return out, nil
}

// Load returns the custom patterns from dir followed by the built-in table,
// so operator patterns take priority.
func Load(dir string, logger *slog.Logger) ([]domain.BotPattern, error) {
	if logger == nil {
		logger = slog.Default()
	}
	custom, err := LoadFromDirectory(dir, logger)
	if err != nil {
		return nil, err
	}
	builtin, err := Builtin()
	if err != nil {
		return nil, err
	}
	return append(custom, builtin...), nil
}
