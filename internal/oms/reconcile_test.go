package oms

import (
	"testing"

	"github.com/aristath/inarbit/internal/domain"
)

func TestPreviewNextAction(t *testing.T) {
	open := map[domain.OrderStatus]int{domain.OrderPending: 1}
	none := map[domain.OrderStatus]int{domain.OrderFilled: 2}

	cases := []struct {
		name               string
		terminal           bool
		autoCancel         bool
		timeout            bool
		maxRoundsExhausted bool
		counts             map[domain.OrderStatus]int
		want               domain.NextAction
	}{
		{"terminal wins over everything", true, true, true, true, open, domain.ActionNone},
		{"auto_cancel requested, not terminal", false, true, false, false, open, domain.ActionWaitCancel},
		{"timeout with open orders", false, false, true, false, open, domain.ActionConsiderAutoCancel},
		{"max_rounds_exhausted with open orders", false, false, false, true, open, domain.ActionConsiderAutoCancel},
		{"timeout but nothing left open", false, false, true, false, none, domain.ActionReconcileAgain},
		{"still converging", false, false, false, false, open, domain.ActionReconcileAgain},
		{"no status counts at all", false, false, false, false, nil, domain.ActionManualInvestigate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := previewNextAction(tc.terminal, tc.autoCancel, tc.timeout, tc.maxRoundsExhausted, tc.counts)
			if got != tc.want {
				t.Errorf("previewNextAction(%v,%v,%v,%v,%v) = %q, want %q", tc.terminal, tc.autoCancel, tc.timeout, tc.maxRoundsExhausted, tc.counts, got, tc.want)
			}
		})
	}
}

func TestHasOpenOrPartial(t *testing.T) {
	if hasOpenOrPartial(nil) {
		t.Error("nil counts should report false")
	}
	if !hasOpenOrPartial(map[domain.OrderStatus]int{domain.OrderPartiallyFilled: 1}) {
		t.Error("partially_filled should count as open")
	}
	if hasOpenOrPartial(map[domain.OrderStatus]int{domain.OrderFilled: 3, domain.OrderCancelled: 1}) {
		t.Error("only terminal statuses should report false")
	}
}
