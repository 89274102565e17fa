package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	for _, status := range OrderStatuses() {
		parsed, err := ParseOrderStatus(string(status))
		if err != nil || parsed != status {
			t.Fatalf("round trip failed for %s: %v", status, err)
		}
	}
	if _, err := ParseOrderStatus("pending"); err == nil {
		t.Fatalf("status parsing is case sensitive")
	}
}

func TestOrderStatusLabelsAndTerminal(t *testing.T) {
	if got := OrderStatusShipping.Label(); got != "Đang giao hàng" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := OrderStatus("Lost").Label(); got != "Lost" {
		t.Fatalf("unknown status should fall back to raw value, got %q", got)
	}
	terminal := map[OrderStatus]bool{OrderStatusCompleted: true, OrderStatusCancelled: true}
	for _, status := range OrderStatuses() {
		if status.IsTerminal() != terminal[status] {
			t.Fatalf("terminal mismatch for %s", status)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	cases := map[string]PaymentMethod{
		"":        PaymentMethodPrepaid,
		"cash":    PaymentMethodCash,
		" CASH ":  PaymentMethodCash,
		"zalo":    PaymentMethodPrepaid,
		"prepaid": PaymentMethodPrepaid,
	}
	for raw, want := range cases {
		got, err := ParsePaymentMethod(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePaymentMethod(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParsePaymentMethod("card"); err == nil {
		t.Fatalf("expected unknown method to fail")
	}
}

func TestParseRoleAndAction(t *testing.T) {
	if r, err := ParseRole("staff"); err != nil || r != RoleStaff {
		t.Fatalf("unexpected role parse %q %v", r, err)
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
	for _, action := range OrderActions() {
		if !action.IsValid() {
			t.Fatalf("action %s should be valid", action)
		}
	}
	if _, err := ParseOrderAction("refund"); err == nil {
		t.Fatalf("expected unknown action to fail")
	}
}
