package selection

import (
	"fmt"
	"math"
	"strings"

	"github.com/aretw0/retrofx/pkg/catalog"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cast"
)

// Policy decides what happens to a numeric value outside its declared bounds.
type Policy int

const (
	// PolicyClamp pins the value to the nearest bound.
	PolicyClamp Policy = iota
	// PolicyReject refuses the write with domain.ErrOutOfRange.
	PolicyReject
)

func (p Policy) String() string {
	if p == PolicyReject {
		return "reject"
	}
	return "clamp"
}

// ParsePolicy converts a config value ("clamp" or "reject") into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return PolicyClamp, nil
	case "reject":
		return PolicyReject, nil
	}
	return PolicyClamp, fmt.Errorf("unknown param policy %q", s)
}

// Selection manages the single active effect of a session.
type Selection struct {
	session *domain.Session
	catalog *catalog.Catalog
	policy  Policy
	clock   clockwork.Clock
}

// Option configures a Selection.
type Option func(*Selection)

// WithPolicy sets the out-of-range policy. Default: PolicyClamp.
func WithPolicy(p Policy) Option {
	return func(s *Selection) {
		s.policy = p
	}
}

// WithClock sets the clock used to stamp session updates.
func WithClock(c clockwork.Clock) Option {
	return func(s *Selection) {
		s.clock = c
	}
}

// New binds a Selection to session, validating against cat.
func New(session *domain.Session, cat *catalog.Catalog, opts ...Option) *Selection {
	s := &Selection{
		session: session,
		catalog: cat,
		policy:  PolicyClamp,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured out-of-range policy.
func (s *Selection) Policy() Policy {
	return s.policy
}

// Set replaces the selection with the default instance of id.
// It never triggers processing.
func (s *Selection) Set(id domain.EffectID) error {
	s.session.Lock()
	defer s.session.Unlock()

	if s.session.ImageRef == "" {
		return domain.Validation("select effect", domain.ErrNoImageLoaded, "")
	}
	inst, err := s.catalog.DefaultInstance(id)
	if err != nil {
		return err
	}
	if cur := s.session.Selection; cur != nil && cur.EffectID == id {
		return domain.Validation("select effect", domain.ErrDuplicateSelection, string(id))
	}

	s.session.Selection = &inst
	s.session.UpdatedAt = s.clock.Now()
	return nil
}

// UpdateParam writes value into the active instance and returns the value
// actually stored after coercion, snapping and clamping.
func (s *Selection) UpdateParam(key string, value any) (any, error) {
	s.session.Lock()
	defer s.session.Unlock()

	sel := s.session.Selection
	if sel == nil {
		if s.session.ImageRef == "" {
			return nil, domain.Validation("update param", domain.ErrNoImageLoaded, "")
		}
		return nil, domain.Validation("update param", domain.ErrNoSelection, "")
	}

	desc, err := s.catalog.DescriptorOf(sel.EffectID)
	if err != nil {
		return nil, err
	}
	spec, ok := desc.Param(key)
	if !ok {
		return nil, domain.Validation("update param", domain.ErrUnknownParameter,
			fmt.Sprintf("%s has no parameter %q", sel.EffectID, key))
	}

	v, err := Coerce(spec, value, s.policy)
	if err != nil {
		return nil, err
	}
	sel.Params[key] = v
	s.session.UpdatedAt = s.clock.Now()
	return v, nil
}

// Clear empties the selection unconditionally.
func (s *Selection) Clear() {
	s.session.Lock()
	defer s.session.Unlock()
	s.session.Selection = nil
	s.session.UpdatedAt = s.clock.Now()
}

// Active returns a copy of the active instance.
func (s *Selection) Active() (domain.EffectInstance, bool) {
	s.session.Lock()
	defer s.session.Unlock()
	if s.session.Selection == nil {
		return domain.EffectInstance{}, false
	}
	return s.session.Selection.Clone(), true
}

// Coerce converts value to the kind declared by spec and enforces its bounds
// according to policy. Numbers are snapped to the step grid anchored at Min.
func Coerce(spec domain.ParamSpec, value any, policy Policy) (any, error) {
	if value == nil {
		return nil, domain.Validation("update param", domain.ErrInvalidValue,
			fmt.Sprintf("%s requires a value", spec.Key))
	}
	switch spec.Kind {
	case domain.KindBoolean:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, domain.Validation("update param", domain.ErrInvalidValue,
				fmt.Sprintf("%s expects a boolean, got %v", spec.Key, value))
		}
		return b, nil

	case domain.KindNumber:
		if _, isBool := value.(bool); isBool {
			return nil, domain.Validation("update param", domain.ErrInvalidValue,
				fmt.Sprintf("%s expects a number, got %v", spec.Key, value))
		}
		f, err := cast.ToFloat64E(value)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, domain.Validation("update param", domain.ErrInvalidValue,
				fmt.Sprintf("%s expects a number, got %v", spec.Key, value))
		}
		if outOfRange(spec, f) && policy == PolicyReject {
			return nil, domain.Validation("update param", domain.ErrOutOfRange,
				fmt.Sprintf("%s=%v outside %s", spec.Key, f, bounds(spec)))
		}
		f = clamp(spec, f)
		f = snap(spec, f)
		return clamp(spec, f), nil
	}
	return nil, domain.Validation("update param", domain.ErrInvalidValue,
		fmt.Sprintf("%s has unsupported kind %q", spec.Key, spec.Kind))
}

func outOfRange(spec domain.ParamSpec, f float64) bool {
	return (spec.Min != nil && f < *spec.Min) || (spec.Max != nil && f > *spec.Max)
}

func clamp(spec domain.ParamSpec, f float64) float64 {
	if spec.Min != nil && f < *spec.Min {
		f = *spec.Min
	}
	if spec.Max != nil && f > *spec.Max {
		f = *spec.Max
	}
	return f
}

func snap(spec domain.ParamSpec, f float64) float64 {
	if spec.Step == nil {
		return f
	}
	base := 0.0
	if spec.Min != nil {
		base = *spec.Min
	}
	step := *spec.Step
	f = base + math.Round((f-base)/step)*step
	// Drop binary noise such as 0.7500000000000001.
	return math.Round(f*1e9) / 1e9
}

func bounds(spec domain.ParamSpec) string {
	lo, hi := "-inf", "+inf"
	if spec.Min != nil {
		lo = fmt.Sprint(*spec.Min)
	}
	if spec.Max != nil {
		hi = fmt.Sprint(*spec.Max)
	}
	return "[" + lo + ", " + hi + "]"
}
