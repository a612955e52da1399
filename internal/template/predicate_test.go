package template_test

import (
	"testing"

	"legacymod/internal/template"
)

func TestEvaluatePredicateBooleans(t *testing.T) {
	scope := template.NewScope()
	scope.Set("enabled", true)

	if !template.EvaluatePredicate("enabled", scope) {
		t.Error("expected true")
	}
	if template.EvaluatePredicate("!enabled", scope) {
		t.Error("expected false for negation")
	}
}

func TestEvaluatePredicateComparisonNumeric(t *testing.T) {
	scope := template.NewScope()
	scope.Set("count", 5.0)

	if !template.EvaluatePredicate("count > 3", scope) {
		t.Error("expected count > 3 to be true")
	}
	if template.EvaluatePredicate("count < 3", scope) {
		t.Error("expected count < 3 to be false")
	}
}

func TestEvaluatePredicateComparisonString(t *testing.T) {
	scope := template.NewScope()
	scope.Set("phase", "build")

	if !template.EvaluatePredicate("phase == 'build'", scope) {
		t.Error("expected phase == 'build' to be true")
	}
}

func TestEvaluatePredicateAndOr(t *testing.T) {
	scope := template.NewScope()
	scope.Set("a", true)
	scope.Set("b", false)

	if !template.EvaluatePredicate("a || b", scope) {
		t.Error("expected a || b to be true")
	}
	if template.EvaluatePredicate("a && b", scope) {
		t.Error("expected a && b to be false")
	}
}

func TestEvaluatePredicateStringBooleansFromPlanVariables(t *testing.T) {
	scope := template.NewScope()
	scope.Set("migrate_db", "true")
	scope.Set("backup_enabled", "false")

	if !template.EvaluatePredicate("migrate_db", scope) {
		t.Error("string \"true\" should satisfy a bare-variable predicate")
	}
	if template.EvaluatePredicate("migrate_db && backup_enabled", scope) {
		t.Error("expected migrate_db && backup_enabled to be false")
	}
	if !template.EvaluatePredicate("(1==1)", scope) {
		t.Error("expected (1==1) to be true")
	}
}

func TestEvaluatePredicateUnboundVariableIsFalse(t *testing.T) {
	scope := template.NewScope()
	if template.EvaluatePredicate("missing", scope) {
		t.Error("unbound variable should evaluate to false, not error out")
	}
}

func TestEvaluatePredicateMalformedIsFalse(t *testing.T) {
	scope := template.NewScope()
	if template.EvaluatePredicate("((unbalanced", scope) {
		t.Error("malformed expression should evaluate to false")
	}
}

func TestEvaluatePredicateParens(t *testing.T) {
	scope := template.NewScope()
	scope.Set("a", true)
	scope.Set("b", false)
	scope.Set("c", true)

	if !template.EvaluatePredicate("(a || b) && c", scope) {
		t.Error("expected (a || b) && c to be true")
	}
}
