package metas

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistryYAML []byte

// Multiplier is a formula scale factor. In YAML it may be written as a plain
// number or as a ratio string such as "1000/8".
type Multiplier float64

// UnmarshalYAML accepts a scalar number or "a/b".
func (m *Multiplier) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: multiplier must be a scalar", node.Line)
	}
	v, err := ParseMultiplier(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = Multiplier(v)
	return nil
}

// ParseMultiplier parses "125", "1000/8" or "1e3/8".
func ParseMultiplier(s string) (float64, error) {
	s = strings.TrimSpace(s)
	num, den, isRatio := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("multiplier %q: %w", s, err)
	}
	if !isRatio {
		return n, nil
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, fmt.Errorf("multiplier %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("multiplier %q: zero divisor", s)
	}
	return n / d, nil
}

// BranchFormulas is one branch entry of the registry file.
type BranchFormulas struct {
	Name     string        `yaml:"name" validate:"required"`
	Formulas []FormulaSpec `yaml:"formulas" validate:"required,dive"`
}

// RegistryFile is the declarative on-disk form of a Registry.
type RegistryFile struct {
	Version  string           `yaml:"version"`
	Columns  []string         `yaml:"columns"`
	Branches []BranchFormulas `yaml:"branches" validate:"required,dive"`
	// Umbrellas maps an ambiguous branch label to court code -> branch name.
	Umbrellas map[string]map[string]string `yaml:"umbrellas"`
}

var registryValidate *validator.Validate

func init() {
	registryValidate = validator.New()
	registryValidate.RegisterStructValidation(validateFormulaShape, FormulaSpec{})
}

// validateFormulaShape checks that the denominator count matches the mode
// and that the multiplier is finite.
func validateFormulaShape(sl validator.StructLevel) {
	f := sl.Current().Interface().(FormulaSpec)
	want := map[Mode]int{ModeAddSub: 3, ModeSub: 2}[f.Mode]
	if want != 0 && len(f.Denominators) != want {
		sl.ReportError(f.Denominators, "Denominators", "denominator", "denominators_for_mode", string(f.Mode))
	}
	if math.IsInf(float64(f.Multiplier), 0) || math.IsNaN(float64(f.Multiplier)) {
		sl.ReportError(f.Multiplier, "Multiplier", "multiplier", "finite", "")
	}
}

// Resolution is the outcome of a successful registry lookup.
type Resolution struct {
	// Branch is the branch whose formulas apply, after umbrella resolution.
	Branch   string
	Formulas []FormulaSpec
}

// Registry maps judicial branches to their ordered formula lists. It is
// immutable once loaded and safe for concurrent reads.
type Registry struct {
	version   string
	columns   []string
	branches  []string
	formulas  map[string][]FormulaSpec
	umbrellas map[string]map[string]string
	fields    []string
}

// DefaultRegistryYAML returns a copy of the embedded registry file.
func DefaultRegistryYAML() []byte { return append([]byte(nil), defaultRegistryYAML...) }

// DefaultRegistry returns the registry embedded in the binary.
func DefaultRegistry() (*Registry, error) {
	r, err := ParseRegistry(defaultRegistryYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded registry: %w", err)
	}
	return r, nil
}

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	r, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseRegistry decodes and validates registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var rf RegistryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return NewRegistry(rf)
}

// NewRegistry validates rf and builds a Registry from it. All problems are
// reported together.
func NewRegistry(rf RegistryFile) (*Registry, error) {
	var errs []error
	if err := registryValidate.Struct(rf); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q check", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	r := &Registry{
		version:   rf.Version,
		formulas:  make(map[string][]FormulaSpec, len(rf.Branches)),
		umbrellas: make(map[string]map[string]string, len(rf.Umbrellas)),
	}
	var derived []string
	inDerived := make(map[string]bool)
	fieldSet := make(map[string]bool)
	for _, b := range rf.Branches {
		if _, dup := r.formulas[b.Name]; dup {
			errs = append(errs, fmt.Errorf("branch %q defined twice", b.Name))
			continue
		}
		names := make(map[string]bool, len(b.Formulas))
		for _, f := range b.Formulas {
			if names[f.Name] {
				errs = append(errs, fmt.Errorf("branch %q: metric %q defined twice", b.Name, f.Name))
			}
			names[f.Name] = true
			if !inDerived[f.Name] {
				inDerived[f.Name] = true
				derived = append(derived, f.Name)
			}
			fieldSet[f.Numerator] = true
			for _, d := range f.Denominators {
				fieldSet[d] = true
			}
		}
		r.branches = append(r.branches, b.Name)
		r.formulas[b.Name] = append([]FormulaSpec(nil), b.Formulas...)
	}

	for umbrella, courts := range rf.Umbrellas {
		if _, clash := r.formulas[umbrella]; clash {
			errs = append(errs, fmt.Errorf("umbrella %q shadows a branch of the same name", umbrella))
		}
		m := make(map[string]string, len(courts))
		for court, branch := range courts {
			if _, ok := r.formulas[branch]; !ok {
				errs = append(errs, fmt.Errorf("umbrella %q: court %s maps to unknown branch %q", umbrella, court, branch))
			}
			m[strings.TrimSpace(court)] = branch
		}
		r.umbrellas[umbrella] = m
	}

	if len(rf.Columns) > 0 {
		listed := make(map[string]bool, len(rf.Columns))
		for _, c := range rf.Columns {
			if listed[c] {
				errs = append(errs, fmt.Errorf("column %q listed twice", c))
			}
			listed[c] = true
		}
		for _, name := range derived {
			if !listed[name] {
				errs = append(errs, fmt.Errorf("metric %q missing from columns", name))
			}
		}
		r.columns = append([]string(nil), rf.Columns...)
	} else {
		r.columns = derived
	}

	for f := range fieldSet {
		r.fields = append(r.fields, f)
	}
	sort.Strings(r.fields)

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Lookup resolves the formulas for a court. A branch listed under umbrellas
// is resolved by court code; any other branch is looked up directly. ok is
// false when no formulas are defined for the court.
func (r *Registry) Lookup(branch, court string) (Resolution, bool) {
	if courts, isUmbrella := r.umbrellas[branch]; isUmbrella {
		target, ok := courts[court]
		if !ok {
			return Resolution{}, false
		}
		branch = target
	}
	f, ok := r.formulas[branch]
	if !ok {
		return Resolution{}, false
	}
	return Resolution{Branch: branch, Formulas: f}, true
}

// Columns returns every metric name across all branches in output order.
func (r *Registry) Columns() []string { return append([]string(nil), r.columns...) }

// Fields returns the sorted union of input fields any formula references.
func (r *Registry) Fields() []string { return append([]string(nil), r.fields...) }

// Branches returns branch names in file order.
func (r *Registry) Branches() []string { return append([]string(nil), r.branches...) }

// Formulas returns one branch's formulas without umbrella resolution.
func (r *Registry) Formulas(branch string) []FormulaSpec { return r.formulas[branch] }

// Umbrellas returns umbrella labels sorted.
func (r *Registry) Umbrellas() []string {
	out := make([]string, 0, len(r.umbrellas))
	for u := range r.umbrellas {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// UmbrellaCourts returns the court code -> branch map of one umbrella.
func (r *Registry) UmbrellaCourts(umbrella string) map[string]string {
	out := make(map[string]string, len(r.umbrellas[umbrella]))
	for k, v := range r.umbrellas[umbrella] {
		out[k] = v
	}
	return out
}

// Version is the free-form version string from the registry file.
func (r *Registry) Version() string { return r.version }
