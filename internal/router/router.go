// Package router implements the advisory pipeline router.
//
// The router picks one of four pipelines from the message classification
// and the configured mode, runs the provider calls for that pipeline in
// order, and returns the normalised reply with its provenance. Degraded
// paths (a failed specialist call in the hybrid pipelines) are absorbed
// here and recorded in the provenance tag.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/internal/classify"
	"github.com/kisaansahayak/sahayak/internal/metrics"
	"github.com/kisaansahayak/sahayak/internal/normalize"
	"github.com/kisaansahayak/sahayak/internal/prompts"
	"github.com/kisaansahayak/sahayak/internal/triage"
	"github.com/kisaansahayak/sahayak/pkg/contracts"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

// Output budgets per call.
const (
	TriageTokens          = 200
	RewriteTokens         = 200
	SynthesisTokens       = 400
	DetailSynthesisTokens = 1000
	RefineTokens          = 1000
	ElaborationTokens     = 1200
)

// State is a step of the request state machine.
type State string

const (
	StateStart          State = "start"
	StateValidate       State = "validate"
	StateClassify       State = "classify_and_resolve_context"
	StateSelectPipeline State = "select_pipeline"
	StateElaborate      State = "elaborate"
	StateSpecialistOnly State = "specialist_only"
	StateTriageHybrid   State = "triage_hybrid"
	StateRewriteHybrid  State = "rewrite_hybrid"
	StateNormalize      State = "normalize"
	StateDone           State = "done"
)

var pipelineState = map[models.Pipeline]State{
	models.PipelineElaborate:      StateElaborate,
	models.PipelineSpecialistOnly: StateSpecialistOnly,
	models.PipelineTriageHybrid:   StateTriageHybrid,
	models.PipelineRewriteHybrid:  StateRewriteHybrid,
}

// Input is everything the router needs for one request. Classification
// describes the raw message; Params are derived from the effective one.
type Input struct {
	Classification models.Classification
	// Elaborate is the caller's explicit "expand the previous answer" flag.
	Elaborate        bool
	EffectiveMessage string
	PreviousAnswer   string
	Params           prompts.Params
}

// ElaborationRequested reports whether the caller or the message asked to
// expand an answer.
func (in Input) ElaborationRequested() bool {
	return in.Elaborate || in.Classification.IsElaborationOnly || in.Classification.IsElaborationHint
}

// Continuation reports whether the request builds on a previous turn.
func (in Input) Continuation() bool {
	return in.ElaborationRequested() || in.Classification.IsFollowUp || in.Classification.IsLooseContinuation
}

// Outcome is a completed pipeline run.
type Outcome struct {
	Decision   models.RoutingDecision
	Reply      string
	Provenance string
	ModelID    string
	Mode       models.Mode
	Trace      []State
}

// Router runs the pipelines against the two providers.
type Router struct {
	mode       models.Mode
	specialist contracts.Specialist
	general    contracts.Generator
}

// New creates a router for mode.
func New(mode models.Mode, specialist contracts.Specialist, general contracts.Generator) *Router {
	return &Router{mode: mode, specialist: specialist, general: general}
}

// Mode returns the configured mode.
func (r *Router) Mode() models.Mode { return r.mode }

// Select chooses the pipeline. Continuations with a previous answer are
// elaborated; everything else follows the mode.
func (r *Router) Select(in Input) models.Pipeline {
	if in.Continuation() && strings.TrimSpace(in.PreviousAnswer) != "" {
		return models.PipelineElaborate
	}
	switch r.mode {
	case models.ModeSpecialistOnly:
		return models.PipelineSpecialistOnly
	case models.ModeHybridFull:
		return models.PipelineRewriteHybrid
	default:
		return models.PipelineTriageHybrid
	}
}

// Route runs the selected pipeline and normalises its reply.
func (r *Router) Route(ctx context.Context, in Input) (*Outcome, error) {
	if strings.TrimSpace(in.EffectiveMessage) == "" {
		return nil, fmt.Errorf("router: empty effective message")
	}
	start := time.Now()

	pipeline := r.Select(in)
	out := &Outcome{
		Decision: models.RoutingDecision{
			Pipeline:         pipeline,
			EffectiveMessage: in.EffectiveMessage,
			PreviousAnswer:   in.PreviousAnswer,
		},
		Mode:  r.mode,
		Trace: []State{StateSelectPipeline, pipelineState[pipeline]},
	}

	var (
		resp *models.ProviderResponse
		err  error
	)
	switch pipeline {
	case models.PipelineElaborate:
		resp, out.Provenance, err = r.elaborate(ctx, in)
	case models.PipelineSpecialistOnly:
		resp, out.Provenance, err = r.specialistOnly(ctx, in)
	case models.PipelineRewriteHybrid:
		resp, out.Provenance, err = r.rewriteHybrid(ctx, in)
	default:
		resp, out.Provenance, err = r.triageHybrid(ctx, in)
	}
	if err != nil {
		log.Warn().
			Str("pipeline", string(pipeline)).
			Str("mode", string(r.mode)).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("Pipeline failed")
		return nil, err
	}

	out.Trace = append(out.Trace, StateNormalize, StateDone)
	out.Reply = normalize.Reply(resp.Text)
	out.ModelID = resp.ModelID
	metrics.PipelineRuns.WithLabelValues(string(pipeline), out.Provenance).Inc()

	log.Info().
		Str("pipeline", string(pipeline)).
		Str("provenance", out.Provenance).
		Str("model", out.ModelID).
		Str("language", string(in.Params.Language)).
		Dur("elapsed", time.Since(start)).
		Msg("Pipeline complete")
	return out, nil
}

// ── Pipelines ───────────────────────────────────────────────

// elaborate refines the previous answer with an expand instruction and
// re-queries once with the elaboration prompt if the result is thin.
func (r *Router) elaborate(ctx context.Context, in Input) (*models.ProviderResponse, string, error) {
	p := in.Params
	p.Detail = true

	resp, err := r.generate(ctx, prompts.Refine(in.EffectiveMessage, in.PreviousAnswer, p), RefineTokens)
	if err != nil {
		return nil, "", err
	}
	if normalize.LooksUnderdetailed(resp.Text) {
		log.Debug().Int("reply_len", len(resp.Text)).Msg("Expansion under-detailed, re-querying")
		resp, err = r.generate(ctx, prompts.Elaboration(in.EffectiveMessage, in.PreviousAnswer, p), ElaborationTokens)
		if err != nil {
			return nil, "", err
		}
	}
	return resp, models.ProvenanceExpand, nil
}

// specialistOnly asks the specialist, then always refines its draft. A
// specialist failure is returned as is and refine never runs.
func (r *Router) specialistOnly(ctx context.Context, in Input) (*models.ProviderResponse, string, error) {
	draft, err := r.specialist.Ask(ctx, prompts.Specialist(in.EffectiveMessage, in.Params))
	if err != nil {
		return nil, "", err
	}
	resp, err := r.generate(ctx, prompts.Refine(in.EffectiveMessage, draft.Text, in.Params), RefineTokens)
	if err != nil {
		return nil, "", err
	}
	return resp, models.ProvenanceSpecialistRefine, nil
}

// triageHybrid lets the general model decide whether the specialist is
// needed, consults it for the extracted sub-question, and synthesises the
// final answer. Triage and specialist failures degrade to an answer
// without specialist input.
func (r *Router) triageHybrid(ctx context.Context, in Input) (*models.ProviderResponse, string, error) {
	decision := triage.Undecodable
	if tr, err := r.generate(ctx, prompts.Triage(in.EffectiveMessage, in.Params), TriageTokens); err != nil {
		log.Warn().Err(err).Msg("Triage call failed, answering without specialist")
	} else {
		decision = triage.Decode(tr.Text)
		if !decision.Decoded {
			log.Debug().Msg("Triage reply undecodable, answering without specialist")
		}
	}

	provenance := models.ProvenanceTriageOnly
	answer := ""
	if decision.Consult() {
		sp, err := r.specialist.Ask(ctx, prompts.Specialist(decision.Question, subParams(decision.Question, in.Params)))
		if err != nil {
			log.Warn().Err(err).Msg("Specialist failed during triage, continuing without it")
			provenance = models.ProvenanceTriageSpecialistErr
		} else {
			answer = sp.Text
			provenance = models.ProvenanceTriageSpecialist
		}
	}

	p := in.Params
	tokens := SynthesisTokens
	if in.ElaborationRequested() {
		p.Detail = true
		tokens = DetailSynthesisTokens
	}
	resp, err := r.generate(ctx, prompts.Synthesis(in.EffectiveMessage, answer, p), tokens)
	if err != nil {
		return nil, "", err
	}
	return resp, provenance, nil
}

// rewriteHybrid cleans up the question, asks the specialist with the
// rewritten text and refines the draft. If the specialist fails the
// answer is refined from a generic best-practice draft instead.
func (r *Router) rewriteHybrid(ctx context.Context, in Input) (*models.ProviderResponse, string, error) {
	question := in.EffectiveMessage
	if rw, err := r.generate(ctx, prompts.Rewrite(in.EffectiveMessage, in.Params), RewriteTokens); err != nil {
		log.Warn().Err(err).Msg("Rewrite call failed, using original question")
	} else if s := strings.TrimSpace(rw.Text); s != "" {
		question = s
	}

	draft := prompts.GenericDraft
	provenance := models.ProvenanceRewriteFallback
	if sp, err := r.specialist.Ask(ctx, prompts.Specialist(question, subParams(question, in.Params))); err != nil {
		log.Warn().Err(err).Msg("Specialist failed during rewrite pipeline, falling back to general answer")
	} else {
		draft = sp.Text
		provenance = models.ProvenanceRewriteSpecialist
	}

	resp, err := r.generate(ctx, prompts.Refine(in.EffectiveMessage, draft, in.Params), RefineTokens)
	if err != nil {
		return nil, "", err
	}
	return resp, provenance, nil
}

func (r *Router) generate(ctx context.Context, prompt string, maxTokens int) (*models.ProviderResponse, error) {
	return r.general.Generate(ctx, prompt, models.GenerateOptions{MaxOutputTokens: maxTokens})
}

// subParams re-derives length targets for a specialist sub-question.
func subParams(question string, base prompts.Params) prompts.Params {
	p := base
	p.Complexity = classify.Complexity(question)
	p.Detail = classify.WantsDetail(question)
	return p
}
