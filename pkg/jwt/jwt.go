package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

// RealmAccess IdP 的 realm 角色声明
type RealmAccess struct {
	Roles []string `json:"roles,omitempty"`
}

// Claims Bearer Token 声明
// 角色可来自 role、roles 或 realm_access.roles，合并使用
type Claims struct {
	PreferredUsername string       `json:"preferred_username,omitempty"`
	Role              string       `json:"role,omitempty"`
	Roles             []string     `json:"roles,omitempty"`
	RealmAccess       *RealmAccess `json:"realm_access,omitempty"`
	TokenType         string       `json:"token_type,omitempty"`
	jwtv5.RegisteredClaims
}

// AllRoles 合并全部角色声明，去重保序
func (c *Claims) AllRoles() []string {
	seen := make(map[string]struct{}, len(c.Roles)+1)
	out := make([]string, 0, len(c.Roles)+1)
	add := func(r string) {
		if r == "" {
			return
		}
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	add(c.Role)
	for _, r := range c.Roles {
		add(r)
	}
	if c.RealmAccess != nil {
		for _, r := range c.RealmAccess.Roles {
			add(r)
		}
	}
	return out
}

// Username 优先 preferred_username，否则使用 sub
func (c *Claims) Username() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}

// Manager JWT 管理器
type Manager struct {
	secret         []byte
	issuer         string
	accessTokenTTL time.Duration
}

// NewManager 创建 JWT 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret:         []byte(cfg.JWTSecret),
		issuer:         cfg.Issuer,
		accessTokenTTL: cfg.AccessTokenTTL,
	}
}

// GenerateAccessToken 签发 Access Token，仅供开发与测试环境使用
func (m *Manager) GenerateAccessToken(subject, username string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		PreferredUsername: username,
		Roles:             roles,
		TokenType:         "access",
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.accessTokenTTL)),
			Issuer:    m.issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Token
// 配置了 issuer 时同时校验 iss
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(m.issuer))
	}

	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
