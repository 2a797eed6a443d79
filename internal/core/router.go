package core

import (
	"fmt"
	"strings"
)

// State is a step of the per-turn dialogue state machine
type State int

const (
	StateStart State = iota
	StateParsed
	StateClarify
	StateIngredients
	StateRanking
	StateComposition
	StateEnd
)

var stateNames = map[State]string{
	StateStart:       "start",
	StateParsed:      "parsed",
	StateClarify:     "clarify",
	StateIngredients: "ingredients",
	StateRanking:     "ranking",
	StateComposition: "composition",
	StateEnd:         "end",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets State render by name in JSON output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the guard result evaluated in StateParsed
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeClarificationNeeded Outcome = "clarification_needed"
	OutcomeReset               Outcome = "reset"
)

// GuardPolicy selects how many slots must be resolved before recommending
type GuardPolicy string

const (
	// PolicyRelaxed proceeds when any one slot is resolved; a missing
	// category is covered by an all-category scan in the ranker.
	PolicyRelaxed GuardPolicy = "relaxed"
	// PolicyStrict requires a category and a skin type or concern.
	PolicyStrict GuardPolicy = "strict"
)

// ParseGuardPolicy validates a policy name
func ParseGuardPolicy(name string) (GuardPolicy, error) {
	switch GuardPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case PolicyRelaxed, "":
		return PolicyRelaxed, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown router policy %q", name)
	}
}

// MissingSlot names a slot group the user still has to provide
type MissingSlot string

const (
	MissingCategory      MissingSlot = "제품 종류"
	MissingSkinOrConcern MissingSlot = "피부 타입 또는 피부 고민"
)

// Router decides between clarification and recommendation. It only reads profiles.
type Router struct {
	policy GuardPolicy
}

// NewRouter creates a router bound to one guard policy
func NewRouter(policy GuardPolicy) Router {
	if policy == "" {
		policy = PolicyRelaxed
	}
	return Router{policy: policy}
}

// Policy returns the active guard policy
func (r Router) Policy() GuardPolicy {
	return r.policy
}

// Decide evaluates the transition guard for a merged profile
func (r Router) Decide(p UserProfile) Outcome {
	hasSkinOrConcern := p.HasSkinType() || p.HasConcerns()
	switch r.policy {
	case PolicyStrict:
		if p.HasCategory() && hasSkinOrConcern {
			return OutcomeSuccess
		}
	default:
		if p.HasCategory() || hasSkinOrConcern {
			return OutcomeSuccess
		}
	}
	return OutcomeClarificationNeeded
}

// Missing lists which slot groups are absent from the profile
func (r Router) Missing(p UserProfile) []MissingSlot {
	var missing []MissingSlot
	if !p.HasCategory() {
		missing = append(missing, MissingCategory)
	}
	if !p.HasSkinType() && !p.HasConcerns() {
		missing = append(missing, MissingSkinOrConcern)
	}
	return missing
}

// Next is the transition function of the turn state machine
func (r Router) Next(s State, p UserProfile) State {
	switch s {
	case StateStart:
		return StateParsed
	case StateParsed:
		if r.Decide(p) == OutcomeSuccess {
			return StateIngredients
		}
		return StateClarify
	case StateIngredients:
		return StateRanking
	case StateRanking:
		return StateComposition
	default:
		return StateEnd
	}
}

// ClarificationMessage builds the reply for StateClarify
func ClarificationMessage(missing []MissingSlot) string {
	labels := make([]string, 0, len(missing))
	for _, m := range missing {
		labels = append(labels, string(m))
	}
	if len(labels) == 0 {
		labels = append(labels, string(MissingCategory))
	}
	return fmt.Sprintf("질문을 이해하지 못했습니다. 정확한 추천을 위해 %s 정보를 알려주세요. 🙂 예: 지성, 로션 / 건성, 보습, 크림",
		strings.Join(labels, "와 "))
}
