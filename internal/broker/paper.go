package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperClient accepts every order locally. Repeated clientOrderIds return the
// first order id, like a broker honouring idempotency.
type PaperClient struct {
	mu    sync.Mutex
	seen  map[string]string
	Posts int
}

func NewPaperClient() *PaperClient { return &PaperClient{seen: make(map[string]string)} }

func (p *PaperClient) Post(_ context.Context, endpoint string, payload map[string]any, _ time.Duration) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Posts++

	key, _ := payload["clientOrderId"].(string)
	id, dup := p.seen[key]
	if !dup {
		id = uuid.NewString()
		if key != "" {
			p.seen[key] = id
		}
	}
	return map[string]any{
		"statusCode": 200,
		"endpoint":   endpoint,
		"orderId":    id,
		"duplicate":  dup,
		"paper":      true,
	}, nil
}
