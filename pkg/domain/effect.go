package domain

import "maps"

// EffectID identifies one supported effect. The set is closed: only the
// constants below are registered by the default catalog.
type EffectID string

const (
	EffectPixelate EffectID = "pixelate"
	EffectVHS      EffectID = "vhs"
)

// ParamKind defines the value type accepted by a parameter.
type ParamKind string

const (
	KindNumber  ParamKind = "number"
	KindBoolean ParamKind = "boolean"
)

// ParamSpec describes a single tunable parameter of an effect.
// Min, Max and Step are only meaningful for KindNumber.
type ParamSpec struct {
	Key     string    `json:"key" yaml:"key"`
	Label   string    `json:"label,omitempty" yaml:"label,omitempty"`
	Kind    ParamKind `json:"kind" yaml:"kind"`
	Min     *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Step    *float64  `json:"step,omitempty" yaml:"step,omitempty"`
	Default any       `json:"default" yaml:"default"`
}

// EffectDescriptor is the immutable schema of one effect.
type EffectDescriptor struct {
	ID          EffectID    `json:"id" yaml:"id"`
	Label       string      `json:"label" yaml:"label"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  []ParamSpec `json:"parameters" yaml:"parameters"`
}

// Param returns the spec for key.
func (d EffectDescriptor) Param(key string) (ParamSpec, bool) {
	for _, p := range d.Parameters {
		if p.Key == key {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// EffectInstance is one configured effect: the effect id plus concrete values
// for every parameter declared by its descriptor.
type EffectInstance struct {
	EffectID EffectID       `json:"effect_id"`
	Params   map[string]any `json:"params"`
}

// Clone returns a copy that shares no map with the receiver.
func (i EffectInstance) Clone() EffectInstance {
	return EffectInstance{
		EffectID: i.EffectID,
		Params:   maps.Clone(i.Params),
	}
}

// Float returns a helper pointer for declaring bounds inline.
func Float(v float64) *float64 {
	return &v
}
