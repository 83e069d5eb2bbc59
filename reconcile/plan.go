// Package reconcile computes and applies the membership changes that bring a group in line with a
// list of wanted email addresses.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BLloyd97/GCP-to-Groups/directory"
)

type Mode int

const (
	Diff Mode = iota
	Replace
)

func (m Mode) String() string {
	switch m {
	case Diff:
		return "diff"

	case Replace:
		return "replace"

	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "diff":
		return Diff, nil

	case "replace":
		return Replace, nil

	default:
		return Diff, fmt.Errorf("invalid mode '%s' - expected 'diff' or 'replace'", s)
	}
}

type Op int

const (
	Delete Op = iota
	Promote
	Insert
)

func (op Op) String() string {
	return [...]string{"delete", "promote", "insert"}[op]
}

type Action struct {
	Op    Op
	Email string
	Role  string
}

// Set describes one group to be reconciled.
type Set struct {
	Group      string
	Owner      string
	Protected  []string
	Mode       Mode
	AllowEmpty bool
}

// Plan holds the changes for a group in the order they are applied: deletes, then the owner, then the
// member inserts.
type Plan struct {
	Group     string
	Mode      Mode
	Deletes   []Action
	Owner     []Action
	Inserts   []Action
	Unchanged []string
	Kept      []string
}

var ErrEmpty = errors.New("query returned no email addresses")

func NewPlan(set Set, current []directory.Member, wanted []string) (*Plan, error) {
	owner := normalise(set.Owner)
	protected := map[string]bool{}
	for _, v := range set.Protected {
		if email := normalise(v); email != "" {
			protected[email] = true
		}
	}

	want := []string{}
	wanting := map[string]bool{}
	for _, v := range wanted {
		email := normalise(v)
		if email == "" || wanting[email] {
			continue
		}

		wanting[email] = true
		if email != owner {
			want = append(want, email)
		}
	}

	if len(want) == 0 && !set.AllowEmpty {
		return nil, fmt.Errorf("%v: %w", set.Group, ErrEmpty)
	}

	plan := Plan{
		Group:     set.Group,
		Mode:      set.Mode,
		Deletes:   []Action{},
		Owner:     []Action{},
		Inserts:   []Action{},
		Unchanged: []string{},
		Kept:      []string{},
	}

	members := map[string]directory.Member{}
	for _, m := range current {
		email := normalise(m.Email)
		if email == "" {
			continue
		}

		members[email] = m

		switch {
		case email == owner:
			// ... handled below

		case protected[email]:
			if wanting[email] {
				plan.Unchanged = append(plan.Unchanged, email)
			} else {
				plan.Kept = append(plan.Kept, email)
			}

		case set.Mode == Diff && wanting[email]:
			plan.Unchanged = append(plan.Unchanged, email)

		default:
			plan.Deletes = append(plan.Deletes, Action{Op: Delete, Email: email})
		}
	}

	if owner != "" {
		if m, ok := members[owner]; !ok {
			plan.Owner = append(plan.Owner, Action{Op: Insert, Email: owner, Role: directory.OWNER})
		} else if m.Role != directory.OWNER {
			plan.Owner = append(plan.Owner, Action{Op: Promote, Email: owner, Role: directory.OWNER})
		} else {
			plan.Unchanged = append(plan.Unchanged, owner)
		}
	}

	for _, email := range want {
		_, member := members[email]

		switch {
		case member && protected[email]:
			// ... never deleted so already counted as unchanged

		case member && set.Mode == Diff:
			// ... already counted as unchanged

		default:
			plan.Inserts = append(plan.Inserts, Action{Op: Insert, Email: email, Role: directory.MEMBER})
		}
	}

	return &plan, nil
}

// Actions returns every change in application order.
func (p *Plan) Actions() []Action {
	actions := []Action{}
	actions = append(actions, p.Deletes...)
	actions = append(actions, p.Owner...)
	actions = append(actions, p.Inserts...)

	return actions
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
