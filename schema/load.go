package schema

import (
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SupportedVersions is the range of schema file versions this package reads.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// fileFormat mirrors the layout of a schema file.
type fileFormat struct {
	Version     string            `yaml:"version"`
	Literals    map[Role]string   `yaml:"literals"`
	Reclaimable []string          `yaml:"reclaimable"`
	Wrappers    map[string]string `yaml:"wrappers"`
	Ops         map[string]opSpec `yaml:"ops"`
}

type opSpec struct {
	Fields []fieldSpec `yaml:"fields"`
	Range  *rangeSpec  `yaml:"range"`
}

// fieldSpec accepts either a plain field name or a mapping {name, optional}.
type fieldSpec Field

func (f *fieldSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		f.Name = value.Value
		return nil
	}
	var m struct {
		Name     string `yaml:"name"`
		Optional bool   `yaml:"optional"`
	}
	if err := value.Decode(&m); err != nil {
		return err
	}
	f.Name, f.Optional = m.Name, m.Optional
	return nil
}

// rangeSpec accepts either a plain range name or a mapping {name, min}.
type rangeSpec Range

func (r *rangeSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Name = value.Value
		return nil
	}
	var m struct {
		Name string `yaml:"name"`
		Min  int    `yaml:"min"`
	}
	if err := value.Decode(&m); err != nil {
		return err
	}
	r.Name, r.Min = m.Name, m.Min
	return nil
}

// Load reads a schema file. YAML and JSON are both accepted.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read schema")
	}
	return Parse(data, path)
}

// Parse decodes a schema from data. source is used for error messages only.
func Parse(data []byte, source string) (*Schema, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, errors.Wrapf(err, "schema %s", source)
	}
	s := New()
	if ff.Version != "" {
		v, err := semver.NewVersion(ff.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "schema %s: version", source)
		}
		s.Version = v
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		panic(err) // constant constraint
	}
	if !c.Check(s.Version) {
		return nil, errors.Errorf("schema %s: version %s not supported, need %s",
			source, s.Version, SupportedVersions)
	}
	for role, op := range ff.Literals {
		s.Literals[role] = op
	}
	if ff.Reclaimable != nil {
		s.Reclaimable = ff.Reclaimable
	}
	for w, f := range ff.Wrappers {
		s.Wrappers[w] = f
	}
	for op, spec := range ff.Ops {
		fields := make([]Field, len(spec.Fields))
		for i, f := range spec.Fields {
			fields[i] = Field(f)
		}
		var rng *Range
		if spec.Range != nil {
			r := Range(*spec.Range)
			rng = &r
		}
		s.Define(op, fields, rng)
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "schema %s", source)
	}
	tracer().Infof("loaded schema %s (version %s) with %d operators", source, s.Version, s.Size())
	return s, nil
}
