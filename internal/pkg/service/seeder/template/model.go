// Package template defines the declarative seed payload, default device groups,
// alert rules and simulations, loaded from a named JSON resource.
package template

import (
	"encoding/json"
)

// Template is the seed payload. Order of the slices is preserved,
// resources are created in the listed order.
type Template struct {
	Groups      []Group      `json:"groups"`
	Rules       []Rule       `json:"rules"`
	Simulations []Simulation `json:"simulations"`
}

// Simulation is an opaque payload, it is sent to the simulation service as-is.
type Simulation = json.RawMessage

// Group is a device group. Payload keeps the original JSON object,
// including fields unknown to this service, upserts send it unmodified.
type Group struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Payload     json.RawMessage `json:"-"`
}

// Rule is an alert rule bound to a device group by GroupID.
// Payload keeps the original JSON object, including unknown fields.
type Rule struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	GroupID     string          `json:"groupId"`
	Payload     json.RawMessage `json:"-"`
}

func (g *Group) UnmarshalJSON(data []byte) error {
	type raw Group
	if err := json.Unmarshal(data, (*raw)(g)); err != nil {
		return err
	}
	g.Payload = append(json.RawMessage(nil), data...)
	return nil
}

func (g Group) MarshalJSON() ([]byte, error) {
	if g.Payload != nil {
		return g.Payload, nil
	}
	type raw Group
	return json.Marshal(raw(g))
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	type raw Rule
	if err := json.Unmarshal(data, (*raw)(r)); err != nil {
		return err
	}
	r.Payload = append(json.RawMessage(nil), data...)
	return nil
}

func (r Rule) MarshalJSON() ([]byte, error) {
	if r.Payload != nil {
		return r.Payload, nil
	}
	type raw Rule
	return json.Marshal(raw(r))
}
