// Package trigger models multi-stage capture triggers.
//
// A Trigger is an ordered list of stages. Each stage holds one or more
// channel matches that must all hold on the same sample; stages fire in
// order, each one on a later sample than the previous stage.
package trigger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bft-labs/sigcap/internal/domain"
)

// MatchType is the condition a channel has to meet.
type MatchType int

const (
	MatchZero MatchType = iota + 1
	MatchOne
	MatchRising
	MatchFalling
	MatchEdge
	MatchOver
	MatchUnder
)

// String returns the short form used in trigger expressions.
func (m MatchType) String() string {
	switch m {
	case MatchZero:
		return "0"
	case MatchOne:
		return "1"
	case MatchRising:
		return "r"
	case MatchFalling:
		return "f"
	case MatchEdge:
		return "e"
	case MatchOver:
		return "o"
	case MatchUnder:
		return "u"
	default:
		return "?"
	}
}

// Channel identifies the channel a match applies to.
type Channel struct {
	Name   string
	Index  int
	Analog bool
}

// Match is one channel condition within a stage. Value is the threshold
// for analog matches and is ignored for logic matches.
type Match struct {
	Channel Channel
	Type    MatchType
	Value   float64
}

// Stage is a set of matches that must hold on the same sample.
type Stage struct {
	Index   int
	Matches []Match
}

// Trigger is an ordered list of stages.
type Trigger struct {
	Name   string
	Stages []*Stage
}

// New creates an empty trigger.
func New(name string) *Trigger {
	return &Trigger{Name: name}
}

// AddStage appends a new empty stage.
func (t *Trigger) AddStage() *Stage {
	s := &Stage{Index: len(t.Stages)}
	t.Stages = append(t.Stages, s)
	return s
}

// validFor reports whether m can be used on a channel of the given kind.
func validFor(m MatchType, analog bool) bool {
	switch m {
	case MatchRising, MatchFalling, MatchEdge:
		return true
	case MatchZero, MatchOne:
		return !analog
	case MatchOver, MatchUnder:
		return analog
	default:
		return false
	}
}

// AddMatch appends a channel condition to the stage. Logic channels accept
// zero, one, rising, falling and edge; analog channels accept rising,
// falling, edge, over and under.
func (s *Stage) AddMatch(ch Channel, m MatchType, value float64) error {
	if ch.Name == "" {
		return fmt.Errorf("%w: match without channel", domain.ErrInvalidArgument)
	}
	if !validFor(m, ch.Analog) {
		kind := "logic"
		if ch.Analog {
			kind = "analog"
		}
		return fmt.Errorf("%w: match %s not valid on %s channel %s",
			domain.ErrInvalidArgument, m, kind, ch.Name)
	}
	s.Matches = append(s.Matches, Match{Channel: ch, Type: m, Value: value})
	return nil
}

// String renders the trigger in expression form, e.g. "D0=r,D1=1;A0>1.5".
func (t *Trigger) String() string {
	stages := make([]string, 0, len(t.Stages))
	for _, s := range t.Stages {
		conds := make([]string, 0, len(s.Matches))
		for _, m := range s.Matches {
			conds = append(conds, m.String())
		}
		stages = append(stages, strings.Join(conds, ","))
	}
	return strings.Join(stages, ";")
}

func (m Match) String() string {
	value := strconv.FormatFloat(m.Value, 'g', -1, 64)
	switch m.Type {
	case MatchOver:
		return m.Channel.Name + ">" + value
	case MatchUnder:
		return m.Channel.Name + "<" + value
	}
	if m.Channel.Analog {
		return m.Channel.Name + "=" + m.Type.String() + ":" + value
	}
	return m.Channel.Name + "=" + m.Type.String()
}
