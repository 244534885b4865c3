package envelope

import "testing"

func testAuthority() Authority {
	return Authority{
		Cap:    CapabilityRef{CapRef: "cap:test:123"},
		Scopes: []string{"read", "write"},
	}
}

func TestBuilderBuildsValidEnvelope(t *testing.T) {
	env, err := NewBuilder().
		Actor(Actor{PrincipalID: "user:alice", Kind: ActorHuman}).
		Resource(Resource{ID: "file:/data/report.pdf", Kind: "file", Ns: "documents"}).
		Action(NewAction("file", "read")).
		Authority(testAuthority()).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if env.Action.Name != "file.read" {
		t.Fatalf("got action %q", env.Action.Name)
	}
	if env.ID == "" {
		t.Fatal("expected non-empty envelope id")
	}
}

func TestBuilderMissingActorRejected(t *testing.T) {
	_, err := NewBuilder().
		Resource(Resource{ID: "test"}).
		Action(NewAction("test", "action")).
		Authority(testAuthority()).
		Build()
	if err == nil {
		t.Fatal("expected missing-actor error")
	}
}

func TestValidateRejectsEmptyActorID(t *testing.T) {
	env := &Envelope{
		Actor:     Actor{PrincipalID: ""},
		Resource:  Resource{ID: "test"},
		Action:    NewAction("test", "action"),
		Authority: testAuthority(),
	}
	if err := env.Validate(); err == nil {
		t.Fatal("expected validation error for empty actor id")
	}
}

func TestValidateRejectsMissingDot(t *testing.T) {
	env := &Envelope{
		Actor:     Actor{PrincipalID: "user:alice"},
		Resource:  Resource{ID: "test"},
		Action:    Action{Name: "noaction"},
		Authority: testAuthority(),
	}
	if err := env.Validate(); err == nil {
		t.Fatal("expected validation error for action without '.'")
	}
}

func TestValidateRejectsExhaustedBudget(t *testing.T) {
	budget := NewBudget("b1", "api_calls", 10)
	budget.Used = 10
	env := &Envelope{
		Actor:     Actor{PrincipalID: "user:alice"},
		Resource:  Resource{ID: "test"},
		Action:    NewAction("file", "read"),
		Authority: Authority{Cap: CapabilityRef{CapRef: "cap:1"}, Budgets: []Budget{budget}},
	}
	if err := env.Validate(); err == nil {
		t.Fatal("expected validation error for exhausted budget")
	}
}

func TestActionParseName(t *testing.T) {
	a := NewAction("database", "query")
	domain, verb, ok := a.ParseName()
	if !ok || domain != "database" || verb != "query" {
		t.Fatalf("got (%q, %q, %v)", domain, verb, ok)
	}
}

func TestNamespaceContains(t *testing.T) {
	parent := Namespace("org.example")
	child := Namespace("org.example.service")
	other := Namespace("com.other")
	if !parent.Contains(child) {
		t.Fatal("expected parent to contain child")
	}
	if parent.Contains(other) {
		t.Fatal("expected parent to not contain unrelated namespace")
	}
}

func TestCanonicalHashDeterministic(t *testing.T) {
	env, err := NewBuilder().
		Actor(Actor{PrincipalID: "user:alice", Kind: ActorHuman}).
		Resource(Resource{ID: "file:/data/report.pdf"}).
		Action(NewAction("file", "read")).
		Authority(testAuthority()).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	h1, err := env.CanonicalHash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := env.CanonicalHash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %s vs %s", h1, h2)
	}
}

func TestBudgetConsume(t *testing.T) {
	b := NewBudget("test", "api_calls", 100)
	if !b.Consume(50) {
		t.Fatal("expected consume to succeed")
	}
	if b.Remaining() != 50 {
		t.Fatalf("expected 50 remaining, got %d", b.Remaining())
	}
	if b.Consume(60) {
		t.Fatal("expected consume to fail past limit")
	}
	if b.Remaining() != 50 {
		t.Fatalf("expected remaining unchanged at 50, got %d", b.Remaining())
	}
}
