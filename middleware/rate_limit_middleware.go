package middleware

import (
	"net/http"

	"OrgVerify/limiter"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type RateLimitConfig struct {
	KeyFunc func(c echo.Context) string // 自定义 Key 生成器
}

// ActorKey limits per authenticated actor, falling back to the client IP.
func ActorKey(c echo.Context) string {
	if actor := CurrentActor(c); actor != nil {
		return actor.Ref.String()
	}
	return c.RealIP()
}

func NewRateLimitMiddleware(manager limiter.Limiter, config RateLimitConfig) echo.MiddlewareFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = ActorKey
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := config.KeyFunc(c)
			if key == "" {
				key = c.RealIP()
			}

			allowed, err := manager.Allow(c.Request().Context(), key)
			if err != nil {
				// Redis 故障时放行
				log.Error().Err(err).Str("key", key).Msg("rate limit check failed")
				return next(c)
			}
			if !allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too many requests",
				})
			}
			return next(c)
		}
	}
}
