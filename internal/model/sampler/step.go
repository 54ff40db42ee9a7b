package sampler

import (
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// Phase tracks where a graph stands inside one generation step. Decisions
// arrive strictly in order: focus first, then species, then position. A stop
// draw at the focus stage ends the graph's growth for good.
type Phase int

const (
	PhaseAwaitingFocus Phase = iota
	PhaseAwaitingSpecies
	PhaseAwaitingPosition
	PhaseStepComplete
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingFocus:
		return "awaiting_focus"
	case PhaseAwaitingSpecies:
		return "awaiting_species"
	case PhaseAwaitingPosition:
		return "awaiting_position"
	case PhaseStepComplete:
		return "step_complete"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StepState accumulates one graph's decisions during a generation step.
type StepState struct {
	Phase     Phase
	FocusNode int
	Species   int
	Position  fragment.Vec3
}

// NewStepState returns a state awaiting its focus decision.
func NewStepState() *StepState {
	return &StepState{Phase: PhaseAwaitingFocus, FocusNode: -1, Species: -1}
}

func (s *StepState) expect(p Phase, what string) error {
	if s.Phase != p {
		return errors.Newf(errors.CodeInternal,
			"cannot %s in phase %s", what, s.Phase)
	}
	return nil
}

// ChooseFocus records the focus node and advances to species selection.
func (s *StepState) ChooseFocus(node int) error {
	if err := s.expect(PhaseAwaitingFocus, "choose focus"); err != nil {
		return err
	}
	if node < 0 {
		return errors.Newf(errors.CodeInvalidParam, "focus node %d is negative", node)
	}
	s.FocusNode = node
	s.Phase = PhaseAwaitingSpecies
	return nil
}

// ChooseStop ends the graph's growth instead of picking a focus.
func (s *StepState) ChooseStop() error {
	if err := s.expect(PhaseAwaitingFocus, "choose stop"); err != nil {
		return err
	}
	s.Phase = PhaseStopped
	return nil
}

// ChooseSpecies records the new atom's element and advances to placement.
func (s *StepState) ChooseSpecies(species int) error {
	if err := s.expect(PhaseAwaitingSpecies, "choose species"); err != nil {
		return err
	}
	if species < 0 {
		return errors.Newf(errors.CodeInvalidParam, "species %d is negative", species)
	}
	s.Species = species
	s.Phase = PhaseAwaitingPosition
	return nil
}

// ChoosePosition records the new atom's absolute position and completes the
// step.
func (s *StepState) ChoosePosition(p fragment.Vec3) error {
	if err := s.expect(PhaseAwaitingPosition, "choose position"); err != nil {
		return err
	}
	s.Position = p
	s.Phase = PhaseStepComplete
	return nil
}

// Done reports whether the step reached a terminal phase.
func (s *StepState) Done() bool {
	return s.Phase == PhaseStepComplete || s.Phase == PhaseStopped
}
