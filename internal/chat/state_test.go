package chat

import "testing"

func TestValidTransitionFollowsFlow(t *testing.T) {
	allowed := [][2]State{
		{StateInit, StateGreeting},
		{StateInit, StateCustomerConfirmation},
		{StateGreeting, StateCustomerSelection},
		{StateGreeting, StateCustomerConfirmation},
		{StateCustomerConfirmation, StateOrderStart},
		{StateCustomerConfirmation, StateCustomerSelection},
		{StateCustomerSelection, StateOrderStart},
		{StateOrderStart, StateProductSelection},
		{StateProductSelection, StateQuantityInput},
		{StateQuantityInput, StateAddMoreProducts},
		{StateAddMoreProducts, StateProductSelection},
		{StateAddMoreProducts, StateShippingAddress},
		{StateShippingAddress, StateSpecialInstructions},
		{StateSpecialInstructions, StateOrderSummary},
		{StateOrderSummary, StatePriceConfirmation},
		{StatePriceConfirmation, StateOrderConfirmation},
		{StatePriceConfirmation, StateCancel},
		{StateOrderConfirmation, StateOrderProcessing},
		{StateOrderProcessing, StateOrderComplete},
		{StateError, StateInit},
		{StateCancel, StateInit},
	}
	for _, pair := range allowed {
		if !ValidTransition(pair[0], pair[1]) {
			t.Errorf("transition %s -> %s should be valid", pair[0], pair[1])
		}
	}

	forbidden := [][2]State{
		{StateInit, StateOrderProcessing},
		{StateGreeting, StateOrderComplete},
		{StateProductSelection, StateShippingAddress},
		{StateOrderComplete, StateOrderProcessing},
		{StateQuantityInput, StateOrderConfirmation},
	}
	for _, pair := range forbidden {
		if ValidTransition(pair[0], pair[1]) {
			t.Errorf("transition %s -> %s should be invalid", pair[0], pair[1])
		}
	}
}

func TestValidTransitionSelfAlwaysAllowed(t *testing.T) {
	for state := range transitions {
		if !ValidTransition(state, state) {
			t.Errorf("self transition for %s should be valid", state)
		}
	}
}

func TestParseState(t *testing.T) {
	if s, ok := ParseState("quantity_input"); !ok || s != StateQuantityInput {
		t.Fatalf("ParseState(quantity_input) = %v, %v", s, ok)
	}
	if _, ok := ParseState("nonsense"); ok {
		t.Fatal("ParseState should reject unknown names")
	}
}
