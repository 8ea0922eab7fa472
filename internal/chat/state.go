package chat

// State names one step of the ordering dialogue. The flow is flat, there is
// no state hierarchy.
type State string

const (
	StateInit                 State = "init"
	StateGreeting             State = "greeting"
	StateCustomerSelection    State = "customer_selection"
	StateCustomerConfirmation State = "customer_confirmation"
	StateOrderStart           State = "order_start"
	StateProductSelection     State = "product_selection"
	StateQuantityInput        State = "quantity_input"
	StateAddMoreProducts      State = "add_more_products"
	StateShippingAddress      State = "shipping_address"
	StateSpecialInstructions  State = "special_instructions"
	StateOrderSummary         State = "order_summary"
	StatePriceConfirmation    State = "price_confirmation"
	StatePaymentMethod        State = "payment_method"
	StateOrderConfirmation    State = "order_confirmation"
	StateOrderProcessing      State = "order_processing"
	StateOrderComplete        State = "order_complete"
	StateError                State = "error"
	StateClarification        State = "clarification"
	StateCancel               State = "cancel"
)

// transitions is the adjacency list of the dialogue flow. A state may always
// stay where it is (reprompts), so self-edges are implicit.
var transitions = map[State][]State{
	StateInit:                 {StateGreeting, StateCustomerSelection, StateCustomerConfirmation, StateClarification, StateError},
	StateGreeting:             {StateCustomerSelection, StateCustomerConfirmation, StateClarification, StateError},
	StateCustomerSelection:    {StateCustomerConfirmation, StateOrderStart, StateClarification, StateError},
	StateCustomerConfirmation: {StateOrderStart, StateCustomerSelection, StateError},
	StateOrderStart:           {StateProductSelection, StateError},
	StateProductSelection:     {StateQuantityInput, StateClarification, StateError},
	StateQuantityInput:        {StateAddMoreProducts, StateClarification, StateError},
	StateAddMoreProducts:      {StateProductSelection, StateShippingAddress, StateError},
	StateShippingAddress:      {StateSpecialInstructions, StateClarification, StateError},
	StateSpecialInstructions:  {StateOrderSummary, StateError},
	StateOrderSummary:         {StatePriceConfirmation, StateError},
	StatePriceConfirmation:    {StateOrderConfirmation, StatePaymentMethod, StateProductSelection, StateQuantityInput, StateShippingAddress, StateCancel, StateError},
	StatePaymentMethod:        {StateOrderConfirmation, StateCancel, StateError},
	StateOrderConfirmation:    {StateOrderProcessing, StateCancel, StateError},
	StateOrderProcessing:      {StateOrderComplete, StateCancel, StateError},
	StateOrderComplete:        {StateInit, StateOrderStart},
	StateError:                {StateInit},
	StateClarification:        {StateCustomerSelection, StateProductSelection, StateQuantityInput, StateShippingAddress, StateInit, StateError},
	StateCancel:               {StateInit},
}

// ValidTransition reports whether moving from one state to another follows
// the dialogue flow. Staying put is always allowed.
func ValidTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ParseState maps a state name back to a State, reporting whether the name
// is known. Used to vet model-suggested next states.
func ParseState(name string) (State, bool) {
	s := State(name)
	if _, ok := transitions[s]; ok {
		return s, true
	}
	return "", false
}
