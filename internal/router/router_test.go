package router_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisaansahayak/sahayak/internal/classify"
	"github.com/kisaansahayak/sahayak/internal/prompts"
	"github.com/kisaansahayak/sahayak/internal/provider"
	"github.com/kisaansahayak/sahayak/internal/router"
	"github.com/kisaansahayak/sahayak/pkg/models"
)

// ── Mock providers ──────────────────────────────────────────

// mockGeneral answers by prompt kind and records the kinds it saw.
type mockGeneral struct {
	mu      sync.Mutex
	kinds   []string
	prompts []string
	tokens  []int
	replies map[string][]string // kind → queued replies (last one repeats)
	errs    map[string]error
}

func kindOf(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "You are deciding whether"):
		return "triage"
	case strings.HasPrefix(prompt, "Please refine"):
		return "refine"
	case strings.HasPrefix(prompt, "You are expanding"):
		return "elaboration"
	case strings.HasPrefix(prompt, "Rewrite the farmer"):
		return "rewrite"
	default:
		return "synthesis"
	}
}

func (m *mockGeneral) Generate(_ context.Context, prompt string, opts models.GenerateOptions) (*models.ProviderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := kindOf(prompt)
	m.kinds = append(m.kinds, k)
	m.prompts = append(m.prompts, prompt)
	m.tokens = append(m.tokens, opts.MaxOutputTokens)
	if err := m.errs[k]; err != nil {
		return nil, err
	}
	queue := m.replies[k]
	text := k + " reply"
	if len(queue) > 0 {
		text = queue[0]
		if len(queue) > 1 {
			m.replies[k] = queue[1:]
		}
	}
	return &models.ProviderResponse{Text: text, ProviderID: provider.GeneralID, ModelID: "model-" + k}, nil
}

type mockSpecialist struct {
	queries []string
	answer  string
	err     error
}

func (m *mockSpecialist) Ask(_ context.Context, query string) (*models.ProviderResponse, error) {
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return &models.ProviderResponse{Text: m.answer, ProviderID: provider.SpecialistID}, nil
}

func input(msg string) router.Input {
	cls := classify.Classify(msg)
	return router.Input{
		Classification:   cls,
		EffectiveMessage: msg,
		Params: prompts.Params{
			Language:   cls.Language,
			Complexity: cls.Complexity,
		},
	}
}

const detailedReply = "- Bullet one has enough words to be meaningful for a farmer reading it.\n" +
	"- Bullet two also carries several sentences of practical guidance here.\n" +
	"- Bullet three closes with advice to confirm with the local agri officer.\n" +
	"- Bullet four adds a final note."

// ── Selection ───────────────────────────────────────────────

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		mode models.Mode
		in   router.Input
		want models.Pipeline
	}{
		{"lite default", models.ModeHybridLite, input("how much water does rice need in July"), models.PipelineTriageHybrid},
		{"specialist only", models.ModeSpecialistOnly, input("how much water does rice need in July"), models.PipelineSpecialistOnly},
		{"full", models.ModeHybridFull, input("how much water does rice need in July"), models.PipelineRewriteHybrid},
		{"elaborate without previous answer", models.ModeHybridLite, input("elaborate"), models.PipelineTriageHybrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := router.New(tt.mode, &mockSpecialist{}, &mockGeneral{})
			if got := r.Select(tt.in); got != tt.want {
				t.Errorf("Select() = %q, want %q", got, tt.want)
			}
		})
	}

	withPrev := input("what should i do")
	withPrev.PreviousAnswer = "- earlier advice"
	r := router.New(models.ModeSpecialistOnly, &mockSpecialist{}, &mockGeneral{})
	assert.Equal(t, models.PipelineElaborate, r.Select(withPrev))

	flagged := input("how much water does rice need in July")
	flagged.Elaborate = true
	flagged.PreviousAnswer = "- earlier advice"
	assert.Equal(t, models.PipelineElaborate, r.Select(flagged))
}

// ── TriageHybrid ────────────────────────────────────────────

func TestTriageHybrid_WithSpecialist(t *testing.T) {
	gen := &mockGeneral{replies: map[string][]string{
		"triage":    {`Sure: {"dhenu_needed": true, "dhenu_question": "कीट नियंत्रण"}`},
		"synthesis": {"- नीम तेल का छिड़काव करें। लेबल देखें।"},
	}}
	sp := &mockSpecialist{answer: "- neem"}
	r := router.New(models.ModeHybridLite, sp, gen)

	out, err := r.Route(context.Background(), input("मेरी फसल में कीड़े लग गए हैं, क्या करूं?"))
	require.NoError(t, err)

	assert.Equal(t, []string{"triage", "synthesis"}, gen.kinds)
	require.Len(t, sp.queries, 1)
	assert.True(t, strings.HasSuffix(sp.queries[0], "Question: कीट नियंत्रण"))
	assert.Contains(t, sp.queries[0], "Reply in Hindi.")
	assert.Contains(t, gen.prompts[1], "Dhenu (agriculture specialist) answer:\n- neem")
	assert.Equal(t, []int{router.TriageTokens, router.SynthesisTokens}, gen.tokens)

	assert.Equal(t, models.ProvenanceTriageSpecialist, out.Provenance)
	assert.Equal(t, "model-synthesis", out.ModelID)
	assert.Equal(t, models.ModeHybridLite, out.Mode)
	assert.Equal(t, models.PipelineTriageHybrid, out.Decision.Pipeline)
	assert.Equal(t, "- नीम तेल का छिड़काव करें। लेबल देखें।", out.Reply)
}

func TestTriageHybrid_NotNeeded(t *testing.T) {
	gen := &mockGeneral{replies: map[string][]string{
		"triage": {`{"dhenu_needed": false, "dhenu_question": ""}`},
	}}
	sp := &mockSpecialist{answer: "unused"}
	r := router.New(models.ModeHybridLite, sp, gen)

	out, err := r.Route(context.Background(), input("what is the capital of India"))
	require.NoError(t, err)
	assert.Empty(t, sp.queries)
	assert.Equal(t, models.ProvenanceTriageOnly, out.Provenance)
	assert.Contains(t, gen.prompts[1], "No Dhenu answer available.")
}

func TestTriageHybrid_Undecodable(t *testing.T) {
	gen := &mockGeneral{replies: map[string][]string{"triage": {"I think yes."}}}
	sp := &mockSpecialist{answer: "unused"}
	r := router.New(models.ModeHybridLite, sp, gen)

	out, err := r.Route(context.Background(), input("wheat rust"))
	require.NoError(t, err)
	assert.Empty(t, sp.queries)
	assert.Equal(t, models.ProvenanceTriageOnly, out.Provenance)
}

func TestTriageHybrid_SpecialistFailureSwallowed(t *testing.T) {
	gen := &mockGeneral{replies: map[string][]string{
		"triage": {`{"dhenu_needed": true, "dhenu_question": "wheat rust"}`},
	}}
	sp := &mockSpecialist{err: &provider.ProviderError{Provider: provider.SpecialistID, Status: 500}}
	r := router.New(models.ModeHybridLite, sp, gen)

	out, err := r.Route(context.Background(), input("wheat rust"))
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceTriageSpecialistErr, out.Provenance)
	assert.Contains(t, gen.prompts[1], "No Dhenu answer available.")
}

func TestTriageHybrid_TriageFailureDegrades(t *testing.T) {
	gen := &mockGeneral{errs: map[string]error{"triage": &provider.ProviderError{Status: 400}}}
	r := router.New(models.ModeHybridLite, &mockSpecialist{}, gen)

	out, err := r.Route(context.Background(), input("wheat rust"))
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceTriageOnly, out.Provenance)
	assert.Equal(t, []string{"triage", "synthesis"}, gen.kinds)
}

func TestTriageHybrid_SynthesisFailureSurfaces(t *testing.T) {
	boom := &provider.ProviderError{Provider: provider.GeneralID, Status: 503, Retryable: true}
	gen := &mockGeneral{errs: map[string]error{"synthesis": boom}}
	r := router.New(models.ModeHybridLite, &mockSpecialist{}, gen)

	_, err := r.Route(context.Background(), input("wheat rust"))
	assert.ErrorIs(t, err, boom)
}

func TestTriageHybrid_DetailBudget(t *testing.T) {
	gen := &mockGeneral{}
	r := router.New(models.ModeHybridLite, &mockSpecialist{}, gen)

	in := input("explain wheat rust control in detail")
	_, err := r.Route(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, router.DetailSynthesisTokens, gen.tokens[1])
	assert.Contains(t, gen.prompts[1], "5-7 bullet points")
}

// ── SpecialistOnly ──────────────────────────────────────────

func TestSpecialistOnly(t *testing.T) {
	gen := &mockGeneral{replies: map[string][]string{"refine": {detailedReply}}}
	sp := &mockSpecialist{answer: "- draft"}
	r := router.New(models.ModeSpecialistOnly, sp, gen)

	out, err := r.Route(context.Background(), input("how much urea for wheat"))
	require.NoError(t, err)
	require.Len(t, sp.queries, 1)
	assert.Equal(t, []string{"refine"}, gen.kinds)
	assert.Contains(t, gen.prompts[0], "Draft:\n- draft")
	assert.Equal(t, models.ProvenanceSpecialistRefine, out.Provenance)
}

func TestSpecialistOnly_ConfigErrorSkipsRefine(t *testing.T) {
	gen := &mockGeneral{}
	sp := &mockSpecialist{err: &provider.ConfigError{Provider: provider.SpecialistID, Missing: "DHENU_API_KEY"}}
	r := router.New(models.ModeSpecialistOnly, sp, gen)

	_, err := r.Route(context.Background(), input("how much urea for wheat"))
	var ce *provider.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Empty(t, gen.kinds, "refine must not run after a specialist failure")
}

// ── RewriteHybrid ───────────────────────────────────────────

func TestRewriteHybrid(t *testing.T) {
	gen := &mockGeneral{replies: map[string][]string{"rewrite": {"  Why are my wheat leaves yellow?  "}}}
	sp := &mockSpecialist{answer: "- nitrogen"}
	r := router.New(models.ModeHybridFull, sp, gen)

	out, err := r.Route(context.Background(), input("wheat leaf yellow why"))
	require.NoError(t, err)
	assert.Equal(t, []string{"rewrite", "refine"}, gen.kinds)
	assert.True(t, strings.HasSuffix(sp.queries[0], "Question: Why are my wheat leaves yellow?"))
	assert.Contains(t, gen.prompts[1], "Question:\nwheat leaf yellow why")
	assert.Contains(t, gen.prompts[1], "Draft:\n- nitrogen")
	assert.Equal(t, models.ProvenanceRewriteSpecialist, out.Provenance)
}

func TestRewriteHybrid_SpecialistFailureFallsBack(t *testing.T) {
	gen := &mockGeneral{}
	sp := &mockSpecialist{err: errors.New("down")}
	r := router.New(models.ModeHybridFull, sp, gen)

	out, err := r.Route(context.Background(), input("wheat leaf yellow why"))
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceRewriteFallback, out.Provenance)
	assert.Contains(t, gen.prompts[1], prompts.GenericDraft)
}

// ── Elaborate ───────────────────────────────────────────────

func TestElaborate_DetailedFirstTry(t *testing.T) {
	gen := &mockGeneral{replies: map[string][]string{"refine": {detailedReply}}}
	sp := &mockSpecialist{}
	r := router.New(models.ModeHybridLite, sp, gen)

	in := input("elaborate")
	in.EffectiveMessage = "how to control aphids on mustard"
	in.PreviousAnswer = "- spray neem"
	out, err := r.Route(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"refine"}, gen.kinds)
	assert.Equal(t, []int{router.RefineTokens}, gen.tokens)
	assert.Contains(t, gen.prompts[0], "Expand the draft.")
	assert.Empty(t, sp.queries)
	assert.Equal(t, models.ProvenanceExpand, out.Provenance)
	assert.Equal(t, models.PipelineElaborate, out.Decision.Pipeline)
	assert.Equal(t, "- spray neem", out.Decision.PreviousAnswer)
}

func TestElaborate_UnderDetailedRequeries(t *testing.T) {
	gen := &mockGeneral{replies: map[string][]string{
		"refine":      {"- too short"},
		"elaboration": {detailedReply},
	}}
	r := router.New(models.ModeHybridLite, &mockSpecialist{}, gen)

	in := input("elaborate")
	in.PreviousAnswer = "- spray neem"
	out, err := r.Route(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"refine", "elaboration"}, gen.kinds)
	assert.Equal(t, []int{router.RefineTokens, router.ElaborationTokens}, gen.tokens)
	assert.Equal(t, "model-elaboration", out.ModelID)
}

// ── Properties ──────────────────────────────────────────────

func TestRoute_Deterministic(t *testing.T) {
	run := func() *router.Outcome {
		gen := &mockGeneral{replies: map[string][]string{
			"triage": {`{"dhenu_needed": true, "dhenu_question": "q"}`},
		}}
		r := router.New(models.ModeHybridLite, &mockSpecialist{answer: "a"}, gen)
		out, err := r.Route(context.Background(), input("wheat rust on leaves"))
		require.NoError(t, err)
		return out
	}
	a, b := run(), run()
	assert.Equal(t, a.Provenance, b.Provenance)
	assert.Equal(t, a.Decision, b.Decision)
	assert.Equal(t, a.Trace, b.Trace)
	assert.Equal(t, a.Reply, b.Reply)
}

func TestRoute_EmptyMessage(t *testing.T) {
	r := router.New(models.ModeHybridLite, &mockSpecialist{}, &mockGeneral{})
	_, err := r.Route(context.Background(), router.Input{EffectiveMessage: "  "})
	assert.Error(t, err)
}

func TestRoute_Trace(t *testing.T) {
	r := router.New(models.ModeHybridLite, &mockSpecialist{}, &mockGeneral{})
	out, err := r.Route(context.Background(), input("wheat rust"))
	require.NoError(t, err)
	assert.Equal(t, []router.State{
		router.StateSelectPipeline, router.StateTriageHybrid, router.StateNormalize, router.StateDone,
	}, out.Trace)
}
