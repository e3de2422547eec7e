package auth

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidRole     = errors.New("invalid role")
)

type Role string

const (
	RoleRetailer   Role = "retailer"
	RoleWholesaler Role = "wholesaler"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRetailer, RoleWholesaler:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

// Identity 已驗證的使用者
type Identity struct {
	UID  string `json:"uid"`
	Role Role   `json:"role"`
}

func (i Identity) IsRetailer() bool {
	return i.Role == RoleRetailer
}

func (i Identity) IsWholesaler() bool {
	return i.Role == RoleWholesaler
}

// Provider 將 token 解析成 Identity
// token 不存在或過期 => ErrUnauthenticated
type Provider interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// StaticProvider 固定的 token 對照表，本機開發用
type StaticProvider struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

func NewStaticProvider(tokens map[string]Identity) *StaticProvider {
	p := &StaticProvider{tokens: make(map[string]Identity, len(tokens))}
	for k, v := range tokens {
		p.tokens[k] = v
	}
	return p
}

func (p *StaticProvider) Add(token string, identity Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[token] = identity
}

func (p *StaticProvider) Resolve(ctx context.Context, token string) (*Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	identity, ok := p.tokens[token]
	if !ok || token == "" {
		return nil, ErrUnauthenticated
	}
	return &identity, nil
}

var _ Provider = (*StaticProvider)(nil)
