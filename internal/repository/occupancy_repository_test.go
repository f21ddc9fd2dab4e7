package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/phuttachad/dormcore/internal/domain"
)

// Two admits of one tenant into different rooms hold different room locks,
// so both can pass the duplicate check; the partial unique index catches the
// loser and the violation must surface as the same conflict, not a 500.
func TestUniqueIndexViolationMapsToDuplicateConflict(t *testing.T) {
	pqErr := &pq.Error{
		Code:       "23505",
		Constraint: "occupancy_one_current_per_tenant",
	}

	err := mapOccupancyInsertErr(pqErr, "ten-1")

	var domErr *domain.Error
	if !errors.As(err, &domErr) {
		t.Fatalf("expected *domain.Error, got %T: %v", err, err)
	}
	if domErr.Kind != domain.KindConflict {
		t.Errorf("kind = %s, want %s", domErr.Kind, domain.KindConflict)
	}
	if domErr.Reason != domain.ReasonDuplicateCurrentOccupancy {
		t.Errorf("reason = %s, want %s", domErr.Reason, domain.ReasonDuplicateCurrentOccupancy)
	}
	if domErr.Refs["tenant_id"] != "ten-1" {
		t.Errorf("tenant ref = %q, want ten-1", domErr.Refs["tenant_id"])
	}
}

func TestOtherInsertErrorsStayWrapped(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain error", fmt.Errorf("connection reset")},
		{"wrong code", &pq.Error{Code: "23503", Constraint: "occupancy_one_current_per_tenant"}},
		{"wrong constraint", &pq.Error{Code: "23505", Constraint: "identities_email_key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapOccupancyInsertErr(tt.err, "ten-1")

			var domErr *domain.Error
			if errors.As(err, &domErr) {
				t.Fatalf("expected wrapped error, got domain error %v", domErr)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("wrapped error should preserve the cause")
			}
		})
	}
}
