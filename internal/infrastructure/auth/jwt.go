// Package auth 校验 HS256 访问令牌并提取用户身份。
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/golang-jwt/jwt/v5"
)

// 令牌错误。
var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// TokenQueryParam 为 WebSocket 握手时携带令牌的查询参数。
const TokenQueryParam = "token"

// Claims 为访问令牌载荷，Subject 即用户 ID。
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier 校验令牌签名、有效期与签发方。
type TokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewTokenVerifier 创建 TokenVerifier。
func NewTokenVerifier(c *configloader.Server) (*TokenVerifier, error) {
	if c == nil || c.Auth.JWTSecret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &TokenVerifier{
		secret: []byte(c.Auth.JWTSecret),
		issuer: c.Auth.Issuer,
		leeway: 30 * time.Second,
	}, nil
}

// Verify 返回令牌中的用户 ID。
func (v *TokenVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Sign 签发令牌，供测试与运维工具使用。
func (v *TokenVerifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest 依次读取 Authorization: Bearer 头与 token 查询参数。
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	return r.URL.Query().Get(TokenQueryParam)
}
