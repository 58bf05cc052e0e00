package gate

import (
	"testing"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/types"
)

func newTestGate() *Gate {
	return NewGate(config.NewStore(config.Defaults()))
}

func TestEvaluateAllowsWithNoContext(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{Tags: []string{"medical"}}
	d := g.Evaluate(mem, nil, false)
	if !d.Allowed {
		t.Errorf("expected no context to pass (no stage has anything to gate on), got %+v", d.Reasons)
	}
}

func TestEvaluateVetoesForbiddenLocationTag(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{Tags: []string{"medical"}}
	frame := &types.ContextFrame{Location: "public"}

	d := g.Evaluate(mem, frame, false)
	if d.Allowed {
		t.Fatalf("expected medical tag to be vetoed in public location")
	}
	if d.Reasons[0].Stage != "location" {
		t.Errorf("expected location stage to veto, got stage=%s", d.Reasons[0].Stage)
	}
}

func TestEvaluateVetoesForbiddenRelationshipTag(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{Tags: []string{"salary"}}
	frame := &types.ContextFrame{Participants: []string{"boss"}}

	d := g.Evaluate(mem, frame, false)
	if d.Allowed {
		t.Fatalf("expected salary tag to be vetoed with boss present")
	}
}

func TestEvaluateVetoesDistressedTagsBelowThreshold(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{Tags: []string{"rumination"}}
	frame := &types.ContextFrame{EmotionalState: types.EmotionalState{Prosody: -50}}

	d := g.Evaluate(mem, frame, false)
	if d.Allowed {
		t.Fatalf("expected rumination tag to be vetoed while distressed")
	}
}

func TestEvaluatePassesUnrelatedTags(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{Tags: []string{"hobby"}}
	frame := &types.ContextFrame{Location: "public", Participants: []string{"boss"}}

	d := g.Evaluate(mem, frame, false)
	if !d.Allowed {
		t.Errorf("expected unrelated tag to pass, got %+v", d.Reasons)
	}
}

func TestEvaluateVetoesVaultOnGeneralQuery(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{PrivacyTier: types.TierVault}

	d := g.Evaluate(mem, nil, false)
	if d.Allowed {
		t.Fatalf("expected vault content to be vetoed on a non-id query")
	}
	if d.Reasons[0].Stage != "privacy" {
		t.Errorf("expected privacy stage to veto, got stage=%s", d.Reasons[0].Stage)
	}
}

func TestEvaluateAllowsVaultByExplicitID(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{PrivacyTier: types.TierVault}

	d := g.Evaluate(mem, nil, true)
	if !d.Allowed {
		t.Errorf("expected vault content to pass when queried by explicit memory id, got %+v", d.Reasons)
	}
}

func TestEvaluateVetoesPersonalWithoutTrustedDevice(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{PrivacyTier: types.TierPersonal}
	frame := &types.ContextFrame{TrustedDevice: false}

	d := g.Evaluate(mem, frame, false)
	if d.Allowed {
		t.Fatalf("expected personal content to be vetoed on an untrusted device")
	}
}

func TestEvaluateAllowsPersonalOnTrustedDevice(t *testing.T) {
	g := newTestGate()
	mem := &types.Memory{PrivacyTier: types.TierPersonal}
	frame := &types.ContextFrame{TrustedDevice: true}

	d := g.Evaluate(mem, frame, false)
	if !d.Allowed {
		t.Errorf("expected personal content to pass on a trusted device, got %+v", d.Reasons)
	}
}
