package enums

import "testing"

func TestParseMemberStatus(t *testing.T) {
	for _, raw := range []string{"active", "inactive", "suspended"} {
		got, err := ParseMemberStatus(raw)
		if err != nil {
			t.Fatalf("ParseMemberStatus(%q) returned error: %v", raw, err)
		}
		if !got.IsValid() {
			t.Fatalf("expected %q to be valid", got)
		}
	}
	if _, err := ParseMemberStatus("ACTIVE"); err == nil {
		t.Fatal("expected parse to be case sensitive")
	}
}

func TestParseMemberRole(t *testing.T) {
	role, err := ParseMemberRole("librarian")
	if err != nil || role != MemberRoleLibrarian {
		t.Fatalf("unexpected role %q err %v", role, err)
	}
	if MemberRole("owner").IsValid() {
		t.Fatal("owner is not a library role")
	}
}

func TestParseLoanStatus(t *testing.T) {
	status, err := ParseLoanStatus("returned")
	if err != nil || status != LoanStatusReturned {
		t.Fatalf("unexpected status %q err %v", status, err)
	}
	if _, err := ParseLoanStatus("overdue"); err == nil {
		t.Fatal("overdue is derived, not a stored status")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventLoanOverdue.IsValid() || !AggregateLoan.IsValid() {
		t.Fatal("expected loan outbox enums to be valid")
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if !OutboxDLQReasonMaxAttempts.IsValid() {
		t.Fatal("expected dlq reason to be valid")
	}
}
