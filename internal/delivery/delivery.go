// Package delivery prices shipping for a cart: a base fee picked from
// item-count tiers plus a surcharge for the chosen delivery speed.
package delivery

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"kicks/internal/money"

	"gopkg.in/yaml.v3"
)

type Speed string

const (
	Standard  Speed = "standard"
	Express   Speed = "express"
	Scheduled Speed = "scheduled"
)

// ParseSpeed normalizes user input. Empty input means standard delivery.
func ParseSpeed(raw string) (Speed, error) {
	switch s := Speed(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return Standard, nil
	case Standard, Express, Scheduled:
		return s, nil
	default:
		return "", fmt.Errorf("unknown delivery speed %q", raw)
	}
}

// Tier applies Fee to carts holding at least MinItems items.
type Tier struct {
	MinItems int          `json:"min_items"`
	Fee      money.Amount `json:"fee"`
}

type Policy struct {
	// Tiers sorted by MinItems, highest first.
	Tiers      []Tier
	Surcharges map[Speed]money.Amount
}

// DefaultPolicy is the storefront's published fee table.
func DefaultPolicy() Policy {
	return Policy{
		Tiers: []Tier{
			{MinItems: 20, Fee: 0},
			{MinItems: 10, Fee: money.FromMajor(100)},
			{MinItems: 4, Fee: money.FromMajor(80)},
			{MinItems: 1, Fee: money.FromMajor(40)},
		},
		Surcharges: map[Speed]money.Amount{
			Standard:  0,
			Express:   money.FromMajor(20),
			Scheduled: money.FromMajor(10),
		},
	}
}

// Fee is defined for every input: negative counts are treated as zero, a
// count below every tier has base fee 0 and an unknown speed carries no
// surcharge.
func (p Policy) Fee(itemCount int, speed Speed) money.Amount {
	if itemCount < 0 {
		itemCount = 0
	}

	var base money.Amount
	for _, t := range p.Tiers {
		if itemCount >= t.MinItems {
			base = t.Fee
			break
		}
	}

	return base + p.Surcharges[speed]
}

// Fee prices delivery with DefaultPolicy.
func Fee(itemCount int, speed Speed) money.Amount {
	return DefaultPolicy().Fee(itemCount, speed)
}

// LeadTime is the delivery window shown next to each speed in the order
// summary. Orders themselves always promise OrderLeadTime.
func LeadTime(speed Speed) time.Duration {
	switch speed {
	case Express:
		return 24 * time.Hour
	case Scheduled:
		return 5 * 24 * time.Hour
	default:
		return OrderLeadTime
	}
}

// OrderLeadTime is added to an order's creation time to get its estimated delivery.
const OrderLeadTime = 3 * 24 * time.Hour

type policyFile struct {
	Tiers []struct {
		MinItems int     `yaml:"min_items"`
		Fee      float64 `yaml:"fee"`
	} `yaml:"tiers"`
	Surcharges map[string]float64 `yaml:"surcharges"`
}

// LoadPolicy reads a YAML fee table, e.g.
//
//	tiers:
//	  - {min_items: 20, fee: 0}
//	  - {min_items: 1, fee: 40}
//	surcharges: {express: 20, scheduled: 10}
//
// Speeds missing from the file keep the default surcharge.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read delivery policy: %w", err)
	}
	return parsePolicy(raw)
}

func parsePolicy(raw []byte) (Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Policy{}, fmt.Errorf("decode delivery policy: %w", err)
	}
	if len(f.Tiers) == 0 {
		return Policy{}, fmt.Errorf("delivery policy has no tiers")
	}

	p := DefaultPolicy()
	p.Tiers = p.Tiers[:0:0]
	for _, t := range f.Tiers {
		if t.MinItems < 1 || t.Fee < 0 {
			return Policy{}, fmt.Errorf("invalid tier min_items=%d fee=%v", t.MinItems, t.Fee)
		}
		p.Tiers = append(p.Tiers, Tier{MinItems: t.MinItems, Fee: money.FromFloat(t.Fee)})
	}
	sort.Slice(p.Tiers, func(i, j int) bool { return p.Tiers[i].MinItems > p.Tiers[j].MinItems })

	for name, fee := range f.Surcharges {
		speed, err := ParseSpeed(name)
		if err != nil {
			return Policy{}, err
		}
		p.Surcharges[speed] = money.FromFloat(fee)
	}

	return p, nil
}
