package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	CartMaxRequests     = 20 // ajouts au panier par minute
	CheckoutMaxRequests = 5  // commandes par minute
	LoginMaxAttempts    = 5

	LoginCooldown = 15 * time.Minute
)

// Limiter compte les requêtes d'une clé sur une fenêtre fixe.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// RedisLimiter : INCR + EXPIRE dans un pipeline.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (l *RedisLimiter) Count(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}

// MemoryLimiter : sans Redis (développement, tests).
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]memoryWindow
}

type memoryWindow struct {
	count   int64
	expires time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{now: time.Now, windows: make(map[string]memoryWindow)}
}

func (l *MemoryLimiter) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expires) {
		w = memoryWindow{expires: now.Add(window)}
	}
	w.count++
	l.windows[key] = w
	return w.count, nil
}

func (l *MemoryLimiter) Count(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || l.now().After(w.expires) {
		return 0, nil
	}
	return w.count, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// RateLimit refuse au-delà de max requêtes par fenêtre. La clé est l'id
// utilisateur quand il est connu, sinon l'IP. Si le limiteur est en panne,
// la requête passe.
func RateLimit(limiter Limiter, prefix string, max int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString(ctxUserID)
		if subject == "" {
			subject = c.ClientIP()
		}

		count, err := limiter.Hit(c.Request.Context(), prefix+":"+subject, window)
		if err != nil {
			log.Warn().Err(err).Str("prefix", prefix).Msg("⚠️ Rate limit indisponible")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(max, 10))
		if count > max {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de requêtes. Réessayez plus tard",
				"retry_after": int(window.Seconds()),
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max-count, 10))
		c.Next()
	}
}

func CartRateLimit(limiter Limiter) gin.HandlerFunc {
	return RateLimit(limiter, "cart_add", CartMaxRequests, time.Minute)
}

func CheckoutRateLimit(limiter Limiter) gin.HandlerFunc {
	return RateLimit(limiter, "checkout", CheckoutMaxRequests, time.Minute)
}

// LoginRateLimit compte les échecs de connexion par IP et bloque pendant
// LoginCooldown après LoginMaxAttempts échecs. Un succès remet le compteur
// à zéro.
func LoginRateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "login_attempts:" + c.ClientIP()

		attempts, err := limiter.Count(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Rate limit indisponible")
		} else if attempts >= LoginMaxAttempts {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de tentatives échouées. Réessayez dans %d minutes", int(LoginCooldown.Minutes())),
				"retry_after": int(LoginCooldown.Seconds()),
			})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			if _, err := limiter.Hit(ctx, key, LoginCooldown); err != nil {
				log.Warn().Err(err).Msg("⚠️ Échec de connexion non comptabilisé")
			}
		case http.StatusOK:
			_ = limiter.Reset(ctx, key)
		}
	}
}
