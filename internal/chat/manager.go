package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ordermind/ordermind/internal/domain"
	"github.com/ordermind/ordermind/internal/llm"
	"github.com/ordermind/ordermind/internal/store"
	"github.com/ordermind/ordermind/pkg/common"
)

const (
	// EventOrderCreated is published with the order id after finalization.
	EventOrderCreated = "order.created"

	apologyReply   = "Sorry, something went wrong on our side. Let's start over, how can I help you?"
	dbTroubleReply = "I ran into a problem saving your order. Nothing was charged. Let's try again in a moment."
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Affirmative and negative word sets matched against the whole trimmed
// lowercased message.
var (
	addMoreYesWords = wordSet("yes", "yeah", "sure", "ok", "okay", "yep", "y")
	priceYesWords   = wordSet("si", "sí", "claro", "ok", "okay", "correcto", "s", "proceder")
	orderYesWords   = wordSet("si", "sí", "claro", "ok", "okay", "confirmar", "s", "realizar pedido")
	negativeWords   = wordSet("no", "none", "n")
)

func matchWord(message string, set map[string]struct{}) bool {
	_, ok := set[strings.ToLower(strings.TrimSpace(message))]
	return ok
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	Text      string    `json:"response"`
	ContextID string    `json:"context_id"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager drives conversations: it extracts intent from each message,
// dispatches the per-state handler and persists the turn. A turn never
// escapes with a panic or an unhandled error; the worst outcome is the
// ERROR state and an apology.
type Manager struct {
	extractor *llm.Extractor
	customers store.CustomerRepository
	products  store.ProductRepository
	orders    store.OrderRepository
	chatlogs  store.ChatLogRepository
	sessions  *SessionRegistry
	bus       EventBus.Bus
}

func NewManager(
	extractor *llm.Extractor,
	customers store.CustomerRepository,
	products store.ProductRepository,
	orders store.OrderRepository,
	chatlogs store.ChatLogRepository,
	sessions *SessionRegistry,
	bus EventBus.Bus,
) *Manager {
	return &Manager{
		extractor: extractor,
		customers: customers,
		products:  products,
		orders:    orders,
		chatlogs:  chatlogs,
		sessions:  sessions,
		bus:       bus,
	}
}

// Sessions exposes the registry for the sweep job and handlers.
func (m *Manager) Sessions() *SessionRegistry {
	return m.sessions
}

// ProcessMessage runs one conversation turn. contextID may be empty, in
// which case a new session is started and its id returned in the reply.
func (m *Manager) ProcessMessage(ctx context.Context, contextID, message string) Reply {
	session := m.sessions.Acquire(contextID)
	defer m.sessions.Release(session)

	history := m.historyLines(ctx, session.ID, 6)
	m.logTurn(ctx, session, "user", message)

	var summary string
	if len(session.Order.Items) > 0 {
		summary = session.Order.Summary()
	}
	extraction := m.extractor.ExtractIntent(ctx, string(session.State), summary, history, message)

	text := m.dispatch(ctx, session, message, extraction)

	m.logTurn(ctx, session, "assistant", text)
	return Reply{
		Text:      text,
		ContextID: session.ID,
		State:     session.State,
		CreatedAt: time.Now(),
	}
}

// dispatch routes the turn to the handler for the current state. Any panic
// or unexpected error degrades to the ERROR state with an apology.
func (m *Manager) dispatch(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (text string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("chat turn panicked",
				zap.String("session_id", s.ID),
				zap.String("state", string(s.State)),
				zap.Any("panic", r))
			s.State = StateError
			text = apologyReply
		}
	}()

	var err error
	switch s.State {
	case StateInit, StateGreeting:
		text, err = m.handleGreeting(ctx, s, message, ex)
	case StateCustomerSelection:
		text, err = m.handleCustomerSelection(ctx, s, message, ex)
	case StateCustomerConfirmation:
		text, err = m.handleCustomerConfirmation(ctx, s, message, ex)
	case StateOrderStart:
		text, err = m.handleOrderStart(ctx, s, message, ex)
	case StateProductSelection:
		text, err = m.handleProductSelection(ctx, s, message, ex)
	case StateQuantityInput:
		text, err = m.handleQuantityInput(ctx, s, message, ex)
	case StateAddMoreProducts:
		text, err = m.handleAddMoreProducts(ctx, s, message, ex)
	case StateShippingAddress:
		text, err = m.handleShippingAddress(ctx, s, message, ex)
	case StateSpecialInstructions:
		text, err = m.handleSpecialInstructions(ctx, s, message, ex)
	case StateOrderSummary:
		text, err = m.handleOrderSummary(ctx, s, message, ex)
	case StatePriceConfirmation:
		text, err = m.handlePriceConfirmation(ctx, s, message, ex)
	case StateOrderConfirmation:
		text, err = m.handleOrderConfirmation(ctx, s, message, ex)
	case StateOrderProcessing:
		text, err = m.handleOrderProcessing(ctx, s, message, ex)
	case StateOrderComplete:
		text, err = m.handleOrderComplete(ctx, s, message, ex)
	case StateError:
		text, err = m.handleError(ctx, s, message, ex)
	case StateCancel:
		text, err = m.handleCancel(ctx, s, message, ex)
	case StateClarification:
		text, err = m.handleClarification(ctx, s, message, ex)
	default:
		text, err = m.handleFreeform(ctx, s, message, ex)
	}
	if err != nil {
		zap.L().Error("chat handler failed",
			zap.String("session_id", s.ID),
			zap.String("state", string(s.State)),
			zap.Error(err))
		s.State = StateError
		return apologyReply
	}
	return text
}

func (m *Manager) handleGreeting(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if reply, found, err := m.identifyCustomer(ctx, s, ex.Entities); err != nil {
		return "", err
	} else if found {
		return reply, nil
	}
	if s.State == StateInit {
		s.State = StateGreeting
	} else {
		s.State = StateCustomerSelection
	}
	return "Hi! Welcome to our store. Are you a returning customer? Share your customer id or email to continue.", nil
}

func (m *Manager) handleCustomerSelection(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if reply, found, err := m.identifyCustomer(ctx, s, ex.Entities); err != nil {
		return "", err
	} else if found {
		return reply, nil
	}
	if ex.Entities.Email != "" {
		// unknown email, register a new customer on first contact
		customer := &domain.Customer{
			Name:  nameFromEmail(ex.Entities.Email),
			Email: ex.Entities.Email,
		}
		if err := m.customers.Create(ctx, customer); err != nil {
			return "", errors.Wrap(err, "create customer")
		}
		s.Order.CustomerID = customer.ID
		s.Order.CustomerName = customer.Name
		s.State = StateOrderStart
		zap.L().Info("customer registered",
			zap.Int64("customer_id", customer.ID),
			zap.String("session_id", s.ID))
		return fmt.Sprintf("Welcome, %s! Your account is set up. Would you like to place an order?", customer.Name), nil
	}
	return "I couldn't find that account. Please share your customer id or an email address.", nil
}

// identifyCustomer resolves the customer by id, then by email. It reports
// whether the customer was found and in that case advances the state.
func (m *Manager) identifyCustomer(ctx context.Context, s *Session, ents llm.Entities) (string, bool, error) {
	var customer *domain.Customer
	var err error
	if ents.CustomerID > 0 {
		customer, err = m.customers.GetByID(ctx, ents.CustomerID)
		if err != nil && !errors.Is(err, store.ErrCustomerNotFound) {
			return "", false, err
		}
	}
	if customer == nil && ents.Email != "" {
		customer, err = m.customers.GetByEmail(ctx, ents.Email)
		if err != nil && !errors.Is(err, store.ErrCustomerNotFound) {
			return "", false, err
		}
	}
	if customer == nil {
		return "", false, nil
	}
	s.Order.CustomerID = customer.ID
	s.Order.CustomerName = customer.Name
	// identification on the opening turn gets an explicit confirmation step
	if s.State == StateInit || s.State == StateGreeting {
		s.State = StateCustomerConfirmation
		return fmt.Sprintf("Welcome back, %s! Did I find the right account?", customer.Name), true, nil
	}
	s.State = StateOrderStart
	return fmt.Sprintf("Welcome back, %s! Would you like to place an order?", customer.Name), true, nil
}

// handleCustomerConfirmation settles whether the matched account is the right
// one. A valid model-suggested next state wins; otherwise yes moves on to the
// order and no goes back to identification.
func (m *Manager) handleCustomerConfirmation(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if ex.Parsed && ex.SuggestedNextState != "" {
		if next, ok := ParseState(ex.SuggestedNextState); ok && ValidTransition(StateCustomerConfirmation, next) {
			s.State = next
			return statePrompt(next), nil
		}
	}
	if matchWord(message, addMoreYesWords) || ex.Entities.Action == "confirm" {
		s.State = StateOrderStart
		return "Great! Would you like to place an order?", nil
	}
	if matchWord(message, negativeWords) || ex.Entities.Action == "deny" {
		s.Order.CustomerID = 0
		s.Order.CustomerName = ""
		s.State = StateCustomerSelection
		return "My mistake. Please share your customer id or email so I can find the right account.", nil
	}
	return "Just to confirm, is that your account? A quick yes or no works.", nil
}

func (m *Manager) handleOrderStart(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	s.State = StateProductSelection
	return "Great! What would you like to order? You can give me a product name or id.", nil
}

func (m *Manager) handleProductSelection(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	var product *domain.Product
	var err error
	if ex.Entities.ProductID > 0 {
		product, err = m.products.GetByID(ctx, ex.Entities.ProductID)
		if err != nil && !errors.Is(err, store.ErrProductNotFound) {
			return "", err
		}
	}
	if product == nil && ex.Entities.ProductName != "" {
		product, err = m.products.GetByName(ctx, ex.Entities.ProductName)
		if err != nil && !errors.Is(err, store.ErrProductNotFound) {
			return "", err
		}
	}
	if product == nil {
		return "I couldn't find that product in our catalog. Which product would you like?", nil
	}
	// quantity stays 0 until the customer states one
	s.Order.AddItem(product.ID, product.Name, product.Price, 0)
	s.State = StateQuantityInput
	return fmt.Sprintf("%s costs %s each. How many would you like?", product.Name, common.FmtMoney(product.Price)), nil
}

func (m *Manager) handleQuantityInput(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	last := s.Order.LastItem()
	if last == nil {
		s.State = StateProductSelection
		return "Let's pick a product first. What would you like to order?", nil
	}
	quantity := ex.Entities.Quantity
	if quantity <= 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(message)); err == nil {
			quantity = n
		}
	}
	if quantity <= 0 {
		return "How many units would you like? Please give me a number.", nil
	}
	if _, err := m.products.ValidateInventory(ctx, last.ProductID, quantity); err != nil {
		if isInventoryError(err) {
			return fmt.Sprintf("I can't add that quantity of %s: %s. How many would you like instead?",
				last.ProductName, err.Error()), nil
		}
		return "", err
	}
	s.Order.SetLastQuantity(quantity)
	s.State = StateAddMoreProducts
	return fmt.Sprintf("Added %d x %s. Your total so far is %s. Would you like anything else?",
		quantity, last.ProductName, common.FmtMoney(s.Order.TotalAmount)), nil
}

func (m *Manager) handleAddMoreProducts(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if matchWord(message, addMoreYesWords) {
		s.State = StateProductSelection
		return "What else would you like to add?", nil
	}
	s.State = StateShippingAddress
	if s.Order.CustomerID > 0 {
		customer, err := m.customers.GetByID(ctx, s.Order.CustomerID)
		if err == nil && customer.DefaultShippingAddress != "" {
			return fmt.Sprintf("Where should we ship your order? We have %s on file, just confirm or give another address.",
				customer.DefaultShippingAddress), nil
		}
	}
	return "Where should we ship your order?", nil
}

func (m *Manager) handleShippingAddress(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	address := strings.TrimSpace(ex.Entities.ShippingAddress)
	if common.IsEmptyOrNA(address) {
		address = ""
		if s.Order.CustomerID > 0 {
			customer, err := m.customers.GetByID(ctx, s.Order.CustomerID)
			if err == nil {
				address = customer.DefaultShippingAddress
			}
		}
	}
	if address == "" {
		return "I still need a shipping address. Where should we deliver your order?", nil
	}
	s.Order.ShippingAddress = address
	s.State = StateSpecialInstructions
	return "Got it. Any special delivery instructions? Say no if there are none.", nil
}

func (m *Manager) handleSpecialInstructions(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if !matchWord(message, negativeWords) {
		s.Order.SpecialInstructions = strings.TrimSpace(message)
	}
	s.State = StateOrderSummary
	return s.Order.Summary() + "\n\nShall we go over the total?", nil
}

func (m *Manager) handleOrderSummary(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	s.State = StatePriceConfirmation
	return fmt.Sprintf("Your total comes to %s. Shall we proceed?", common.FmtMoney(s.Order.TotalAmount)), nil
}

func (m *Manager) handlePriceConfirmation(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if reply, handled := m.handleModification(s, ex); handled {
		return reply, nil
	}
	if matchWord(message, priceYesWords) || ex.Entities.Action == "confirm" {
		s.State = StateOrderConfirmation
		return "Perfect. Please confirm to place your order.", nil
	}
	return m.cancelOrder(s), nil
}

// handleModification routes a change request back to the right mid-flow
// state. Recognized types are quantity, product, address and cancel.
func (m *Manager) handleModification(s *Session, ex llm.ExtractionResult) (string, bool) {
	switch ex.Entities.ModificationType {
	case "quantity":
		s.State = StateQuantityInput
		return "Sure, what quantity would you like instead?", true
	case "product":
		s.State = StateProductSelection
		return "Sure, which product would you like instead?", true
	case "address":
		s.State = StateShippingAddress
		return "Sure, where should we ship your order instead?", true
	case "cancel":
		return m.cancelOrder(s), true
	}
	return "", false
}

func (m *Manager) handleOrderConfirmation(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if !matchWord(message, orderYesWords) && ex.Entities.Action != "confirm" {
		return m.cancelOrder(s), nil
	}
	reply, ok, err := m.validateOrder(ctx, s)
	if err != nil {
		return "", err
	}
	if !ok {
		s.State = StateError
		return reply, nil
	}
	s.State = StateOrderProcessing
	return reply, nil
}

// validateOrder re-checks every line and the shipping address before the
// final go-ahead. Failures come back as one consolidated message.
func (m *Manager) validateOrder(ctx context.Context, s *Session) (string, bool, error) {
	if s.Order.Empty() {
		return "Your cart is empty, so there is nothing to order yet.", false, nil
	}
	if common.IsEmptyOrNA(s.Order.ShippingAddress) {
		return "I don't have a shipping address for this order, so I can't place it.", false, nil
	}
	var failures []string
	for _, item := range s.Order.Items {
		if item.Quantity <= 0 {
			continue
		}
		if _, err := m.products.ValidateInventory(ctx, item.ProductID, item.Quantity); err != nil {
			if isInventoryError(err) {
				failures = append(failures, err.Error())
				continue
			}
			return "", false, err
		}
	}
	if len(failures) > 0 {
		return "I couldn't process your order:\n" + strings.Join(failures, "\n"), false, nil
	}
	return fmt.Sprintf("Everything is in stock. Your total is %s. Say confirm to place the order.",
		common.FmtMoney(s.Order.TotalAmount)), true, nil
}

func (m *Manager) handleOrderProcessing(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if !matchWord(message, orderYesWords) && ex.Entities.Action != "confirm" {
		return m.cancelOrder(s), nil
	}
	order, err := m.finalize(ctx, s)
	if err != nil {
		zap.L().Error("order finalization failed",
			zap.String("session_id", s.ID),
			zap.Error(err))
		s.State = StateError
		return dbTroubleReply, nil
	}
	s.State = StateOrderComplete
	return fmt.Sprintf("Your order #%d has been placed! Total %s. Thank you for shopping with us!",
		order.ID, common.FmtMoney(order.TotalAmount)), nil
}

// finalize persists the cart atomically and resets the context. Inventory
// decrements happen inside the store transaction.
func (m *Manager) finalize(ctx context.Context, s *Session) (*domain.Order, error) {
	lines := make([]store.OrderLine, 0, len(s.Order.Items))
	for _, item := range s.Order.Items {
		if item.Quantity > 0 {
			lines = append(lines, store.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}
	order := &domain.Order{
		CustomerID:          s.Order.CustomerID,
		ShippingAddress:     s.Order.ShippingAddress,
		SpecialInstructions: s.Order.SpecialInstructions,
	}
	if err := m.orders.Create(ctx, order, lines); err != nil {
		return nil, err
	}
	if m.bus != nil {
		m.bus.Publish(EventOrderCreated, order.ID)
	}
	s.Order.Reset()
	return order, nil
}

func (m *Manager) handleOrderComplete(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	s.State = StateOrderStart
	return "Is there anything else I can help you with? You can start another order any time.", nil
}

func (m *Manager) handleError(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	s.Order.Reset()
	s.State = StateInit
	return "Sorry about the trouble earlier. Let's start fresh, how can I help you?", nil
}

func (m *Manager) handleCancel(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	s.State = StateInit
	return "We can start fresh whenever you like. How can I help you?", nil
}

func (m *Manager) cancelOrder(s *Session) string {
	s.Order.Reset()
	s.State = StateCancel
	return "No problem, I've cancelled this order. Say hi whenever you want to start again."
}

func (m *Manager) handleClarification(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	if ex.Parsed && ex.SuggestedNextState != "" {
		if next, ok := ParseState(ex.SuggestedNextState); ok && ValidTransition(StateClarification, next) {
			s.State = next
			return statePrompt(next), nil
		}
	}
	return m.handleFreeform(ctx, s, message, ex)
}

// handleFreeform covers states without scripted replies by asking the model
// to phrase one.
func (m *Manager) handleFreeform(ctx context.Context, s *Session, message string, ex llm.ExtractionResult) (string, error) {
	var summary string
	if len(s.Order.Items) > 0 {
		summary = s.Order.Summary()
	}
	reply, err := m.extractor.GenerateReply(ctx, string(s.State), summary, message)
	if err != nil {
		zap.L().Warn("freeform reply failed", zap.String("session_id", s.ID), zap.Error(err))
		return "Could you rephrase that?", nil
	}
	return reply, nil
}

func statePrompt(s State) string {
	switch s {
	case StateCustomerSelection:
		return "Please share your customer id or email."
	case StateOrderStart:
		return "Would you like to place an order?"
	case StateProductSelection:
		return "Which product would you like?"
	case StateQuantityInput:
		return "How many units would you like?"
	case StateShippingAddress:
		return "Where should we ship your order?"
	default:
		return "Could you tell me a bit more?"
	}
}

func isInventoryError(err error) bool {
	return errors.Is(err, store.ErrProductNotFound) ||
		errors.Is(err, store.ErrInsufficientInventory) ||
		errors.Is(err, store.ErrBelowMinStock)
}

func nameFromEmail(email string) string {
	if idx := strings.IndexByte(email, '@'); idx > 0 {
		return email[:idx]
	}
	return "Customer"
}

func (m *Manager) logTurn(ctx context.Context, s *Session, role, content string) {
	err := m.chatlogs.Append(ctx, &domain.ChatLog{
		SessionID: s.ID,
		Role:      role,
		Content:   content,
		State:     string(s.State),
	})
	if err != nil {
		zap.L().Warn("chat log append failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}

func (m *Manager) historyLines(ctx context.Context, sessionID string, limit int) []string {
	logs, err := m.chatlogs.History(ctx, sessionID, limit)
	if err != nil {
		zap.L().Warn("chat history load failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	lines := make([]string, 0, len(logs))
	for _, log := range logs {
		lines = append(lines, log.Role+": "+log.Content)
	}
	return lines
}
