package intent

import (
	"testing"

	"engagement-controlplane/services/catalog"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  Intent
	}{
		{"command with slash", Event{Actor: 1, Kind: EventCommand, Command: "/Start"}, Intent{Kind: KindStart, Actor: 1}},
		{"command tasks", Event{Actor: 1, Kind: EventCommand, Command: "tasks"}, Intent{Kind: KindListTasks, Actor: 1}},
		{"claim follow", Event{Actor: 2, Kind: EventCallback, Data: "task_f_100_1767225600"},
			Intent{Kind: KindClaimTask, Actor: 2, TaskType: catalog.Follow, OrderID: "100_1767225600"}},
		{"claim comment", Event{Actor: 2, Kind: EventCallback, Data: "task_c_9_1"},
			Intent{Kind: KindClaimTask, Actor: 2, TaskType: catalog.Comment, OrderID: "9_1"}},
		{"package", Event{Actor: 3, Kind: EventCallback, Data: "package_bundle"},
			Intent{Kind: KindSelectPackage, Actor: 3, OrderType: catalog.Bundle}},
		{"approve payment", Event{Actor: 999, Kind: EventCallback, Data: "approve_payment_100_1767225600"},
			Intent{Kind: KindApprovePayment, Actor: 999, RequestID: "100_1767225600"}},
		{"reject payout", Event{Actor: 999, Kind: EventCallback, Data: "reject_payout_1790000000000000000"},
			Intent{Kind: KindRejectPayout, Actor: 999, RequestID: "1790000000000000000"}},
		{"role", Event{Actor: 4, Kind: EventCallback, Data: "role_engager"}, Intent{Kind: KindRoleEngager, Actor: 4}},
		{"text", Event{Actor: 5, Kind: EventText, Text: "  @shop instagram 10 "},
			Intent{Kind: KindText, Actor: 5, Text: "@shop instagram 10"}},
		{"photo", Event{Actor: 5, Kind: EventPhoto, ProofRef: "proofs/a.jpg"},
			Intent{Kind: KindPhoto, Actor: 5, ProofRef: "proofs/a.jpg"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.event)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeRejectsUnknown(t *testing.T) {
	for _, e := range []Event{
		{Kind: EventCommand, Command: "start"},
		{Actor: 1, Kind: EventCommand, Command: "/dance"},
		{Actor: 1, Kind: EventCallback, Data: "task_x_1_1"},
		{Actor: 1, Kind: EventCallback, Data: "task_f_"},
		{Actor: 1, Kind: EventCallback, Data: "package_gold"},
		{Actor: 1, Kind: EventCallback, Data: "approve_payment_"},
		{Actor: 1, Kind: EventPhoto},
		{Actor: 1, Kind: "sticker"},
	} {
		_, err := Decode(e)
		require.ErrorIs(t, err, ErrUnknownIntent, "%+v", e)
	}
}

func TestKindString(t *testing.T) {
	require.Equal(t, "claim_task", KindClaimTask.String())
	require.Equal(t, "unknown", Kind(99).String())
}
