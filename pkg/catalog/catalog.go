package catalog

import (
	"fmt"

	"github.com/aretw0/retrofx/pkg/domain"
)

// Catalog is an immutable registry of effect descriptors.
// It holds no mutable state after construction and is safe to share.
type Catalog struct {
	order       []domain.EffectID
	descriptors map[domain.EffectID]domain.EffectDescriptor
}

// New builds a catalog from descs, validating every descriptor.
// Registration order is preserved by List.
func New(descs ...domain.EffectDescriptor) (*Catalog, error) {
	c := &Catalog{
		descriptors: make(map[domain.EffectID]domain.EffectDescriptor, len(descs)),
	}
	for _, d := range descs {
		if err := validate(d); err != nil {
			return nil, fmt.Errorf("invalid descriptor %q: %w", d.ID, err)
		}
		if _, dup := c.descriptors[d.ID]; dup {
			return nil, fmt.Errorf("duplicate effect id %q", d.ID)
		}
		c.descriptors[d.ID] = copyDescriptor(d)
		c.order = append(c.order, d.ID)
	}
	return c, nil
}

// MustNew is like New but panics on an invalid descriptor set.
func MustNew(descs ...domain.EffectDescriptor) *Catalog {
	c, err := New(descs...)
	if err != nil {
		panic(err)
	}
	return c
}

// DescriptorOf returns the descriptor registered for id.
func (c *Catalog) DescriptorOf(id domain.EffectID) (domain.EffectDescriptor, error) {
	d, ok := c.descriptors[id]
	if !ok {
		return domain.EffectDescriptor{}, domain.Validation("catalog", domain.ErrUnknownEffect, string(id))
	}
	return copyDescriptor(d), nil
}

// DefaultInstance returns a fresh instance populated with each parameter's default.
func (c *Catalog) DefaultInstance(id domain.EffectID) (domain.EffectInstance, error) {
	d, ok := c.descriptors[id]
	if !ok {
		return domain.EffectInstance{}, domain.Validation("catalog", domain.ErrUnknownEffect, string(id))
	}
	inst := domain.EffectInstance{
		EffectID: id,
		Params:   make(map[string]any, len(d.Parameters)),
	}
	for _, p := range d.Parameters {
		inst.Params[p.Key] = p.Default
	}
	return inst, nil
}

// List returns all descriptors in registration order.
func (c *Catalog) List() []domain.EffectDescriptor {
	out := make([]domain.EffectDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, copyDescriptor(c.descriptors[id]))
	}
	return out
}

// Has reports whether id is registered.
func (c *Catalog) Has(id domain.EffectID) bool {
	_, ok := c.descriptors[id]
	return ok
}

func validate(d domain.EffectDescriptor) error {
	if d.ID == "" {
		return fmt.Errorf("empty id")
	}
	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Key == "" {
			return fmt.Errorf("parameter with empty key")
		}
		if seen[p.Key] {
			return fmt.Errorf("duplicate parameter %q", p.Key)
		}
		seen[p.Key] = true

		switch p.Kind {
		case domain.KindBoolean:
			if _, ok := p.Default.(bool); !ok {
				return fmt.Errorf("parameter %q: boolean default required", p.Key)
			}
		case domain.KindNumber:
			v, ok := p.Default.(float64)
			if !ok {
				return fmt.Errorf("parameter %q: float64 default required", p.Key)
			}
			if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
				return fmt.Errorf("parameter %q: min > max", p.Key)
			}
			if (p.Min != nil && v < *p.Min) || (p.Max != nil && v > *p.Max) {
				return fmt.Errorf("parameter %q: default %v outside bounds", p.Key, v)
			}
			if p.Step != nil && *p.Step <= 0 {
				return fmt.Errorf("parameter %q: step must be positive", p.Key)
			}
		default:
			return fmt.Errorf("parameter %q: unknown kind %q", p.Key, p.Kind)
		}
	}
	return nil
}

func copyDescriptor(d domain.EffectDescriptor) domain.EffectDescriptor {
	d.Parameters = append([]domain.ParamSpec(nil), d.Parameters...)
	return d
}
