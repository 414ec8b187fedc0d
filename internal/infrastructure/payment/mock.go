package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"storefront/internal/domain"
	"sync"

	"github.com/google/uuid"
)

// MockProvider is an in-memory processor for local runs and tests. Webhook
// payloads are JSON and signed with an HMAC-SHA256 over the raw body using
// the shared secret, mirroring how the real provider authenticates events.
type MockProvider struct {
	mu      sync.RWMutex
	secret  string
	intents map[string]IntentState
}

type mockEventPayload struct {
	Type          string `json:"type"`
	IntentID      string `json:"intent_id"`
	OrderID       string `json:"order_id"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func NewMockProvider(secret string) *MockProvider {
	return &MockProvider{
		secret:  secret,
		intents: make(map[string]IntentState),
	}
}

func (m *MockProvider) Name() string { return "MOCK" }

func (m *MockProvider) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error) {
	id := "pi_mock_" + uuid.NewString()

	m.mu.Lock()
	m.intents[id] = IntentPending
	m.mu.Unlock()

	return &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString(),
		Amount:       amount,
		Currency:     currency,
	}, nil
}

func (m *MockProvider) VerifyEvent(payload []byte, signature string) (*Event, error) {
	expected := m.Sign(payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("%w: signature mismatch", domain.ErrInvalidSignature)
	}

	var body mockEventPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("unmarshal mock event: %w", err)
	}

	return &Event{
		Type:          EventType(body.Type),
		IntentID:      body.IntentID,
		OrderID:       body.OrderID,
		FailureReason: body.FailureReason,
	}, nil
}

func (m *MockProvider) IntentState(ctx context.Context, intentID string) (IntentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.intents[intentID]
	if !ok {
		return "", fmt.Errorf("mock intent %s: %w", intentID, domain.ErrNotFound)
	}
	return state, nil
}

// Sign computes the signature header value for a raw webhook body.
func (m *MockProvider) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(m.secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Settle flips an intent's provider-side state; test and simulation hook.
func (m *MockProvider) Settle(intentID string, state IntentState) {
	m.mu.Lock()
	m.intents[intentID] = state
	m.mu.Unlock()
}
