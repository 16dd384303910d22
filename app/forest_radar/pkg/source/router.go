package source

import (
	"context"

	"golang.org/x/time/rate"
)

// Router 按查询类型把请求分发到不同数据源
type Router struct {
	fallback Source
	routes   map[Kind]Source
}

// NewRouter 创建路由，未配置路由的类型交给 fallback
func NewRouter(fallback Source, routes map[Kind]Source) *Router {
	return &Router{fallback: fallback, routes: routes}
}

// Ensure Router implements Source
var _ Source = (*Router)(nil)

// Query implements Source
func (r *Router) Query(ctx context.Context, req *Request) (*Response, error) {
	if src, ok := r.routes[req.Kind]; ok {
		return src.Query(ctx, req)
	}
	return r.fallback.Query(ctx, req)
}

// Ping 只检查默认数据源，目录本身不可用才是致命错误
func (r *Router) Ping(ctx context.Context) error {
	return Ping(ctx, r.fallback)
}

// limited 每次查询前等待限流器
type limited struct {
	src     Source
	limiter *rate.Limiter
}

// Limited 为数据源加上限流，limiter 为 nil 时原样返回
func Limited(src Source, limiter *rate.Limiter) Source {
	if limiter == nil {
		return src
	}
	return &limited{src: src, limiter: limiter}
}

func (l *limited) Query(ctx context.Context, req *Request) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.src.Query(ctx, req)
}

func (l *limited) Ping(ctx context.Context) error {
	return Ping(ctx, l.src)
}

// NewLimiter 根据每分钟请求数与突发数创建限流器，rpm <= 0 表示不限流
func NewLimiter(qps, rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	burst := qps
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}
