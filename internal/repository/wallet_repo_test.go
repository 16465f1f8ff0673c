package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: txnIDConstraint}

	if !isUniqueViolation(dup, txnIDConstraint) {
		t.Error("direct unique violation not recognized")
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", dup), txnIDConstraint) {
		t.Error("wrapped unique violation not recognized")
	}

	cases := []struct {
		name string
		err  error
	}{
		{"different SQLSTATE", &pq.Error{Code: "23503", Constraint: txnIDConstraint}},
		{"different constraint", &pq.Error{Code: "23505", Constraint: "wallets_pkey"}},
		{"plain error mentioning the constraint", errors.New(txnIDConstraint)},
		{"nil", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if isUniqueViolation(tc.err, txnIDConstraint) {
				t.Errorf("%v misclassified as a unique violation", tc.err)
			}
		})
	}
}
