package dialogue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// referralSeverityThreshold routes the diagnosis stage to referral instead
// of medical advice.
const referralSeverityThreshold = 5

// NewCombinedInfoFlow creates the flow for the combined demographic and
// chief-complaint collection stage. It is the only flow with symptom-stage
// severity and emergency handling enabled.
func NewCombinedInfoFlow(deps Deps) Flow {
	return &collectFlow{
		baseFlow:     baseFlow{state: models.StateCollectingInfo, required: CombinedInfoFields},
		deps:         deps,
		symptomStage: true,
	}
}

// NewLifeStyleFlow creates the flow for the lifestyle collection stage.
func NewLifeStyleFlow(deps Deps) Flow {
	return &collectFlow{
		baseFlow: baseFlow{state: models.StateLifeStyle, required: LifeStyleFields},
		deps:     deps,
	}
}

// outputFlow is the variant for output-only stages: it asks no collection
// questions and is always ready to move on. The manager generates the
// stage's response from collected context.
type outputFlow struct {
	baseFlow
}

func (f *outputFlow) NextQuestion(ctx context.Context, c *Context) (string, bool) {
	return "", false
}

func (f *outputFlow) ProcessResponse(ctx context.Context, reply string, c *Context) Signal {
	return SignalNone
}

func (f *outputFlow) ShouldTransition(ctx context.Context, c *Context) bool {
	return true
}

func (f *outputFlow) NextState(ctx context.Context, c *Context) models.DialogueState {
	f.Reset()
	return models.Successors(f.state)[0]
}

// diagnosisFlow overrides the default successor rule: high severity routes
// to referral, everything else to medical advice.
type diagnosisFlow struct {
	outputFlow
}

func (f *diagnosisFlow) NextState(ctx context.Context, c *Context) models.DialogueState {
	f.Reset()
	severity, err := strconv.Atoi(c.Get("severity"))
	if err != nil {
		severity = 0
	}
	if severity >= referralSeverityThreshold {
		return models.StateReferral
	}
	return models.StateMedicalAdvice
}

// Registry maps each dialogue state to its flow constructor. The mapping is
// fixed at construction; every non-terminal, non-initial state has an entry.
type Registry struct {
	constructors map[models.DialogueState]func() Flow
}

// NewRegistry builds the flow registry over the given collaborators.
func NewRegistry(deps Deps) *Registry {
	return &Registry{constructors: map[models.DialogueState]func() Flow{
		models.StateCollectingInfo: func() Flow { return NewCombinedInfoFlow(deps) },
		models.StateLifeStyle:      func() Flow { return NewLifeStyleFlow(deps) },
		models.StateDiagnosis: func() Flow {
			return &diagnosisFlow{outputFlow{baseFlow{state: models.StateDiagnosis}}}
		},
		models.StateMedicalAdvice: func() Flow {
			return &outputFlow{baseFlow{state: models.StateMedicalAdvice}}
		},
		models.StateReferral: func() Flow {
			return &outputFlow{baseFlow{state: models.StateReferral}}
		},
		models.StateEducation: func() Flow {
			return &outputFlow{baseFlow{state: models.StateEducation}}
		},
	}}
}

// New instantiates a fresh flow for the state.
func (r *Registry) New(state models.DialogueState) (Flow, bool) {
	ctor, ok := r.constructors[state]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Validate checks that every state that can host a flow has a constructor.
func (r *Registry) Validate() error {
	for _, s := range models.AllStates {
		if s == models.StateInitial || s.IsTerminal() {
			continue
		}
		if _, ok := r.constructors[s]; !ok {
			return fmt.Errorf("no flow registered for state %s", s)
		}
	}
	return nil
}
