package factory

import (
	"fmt"
	"sort"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/config"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/logger"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source/httpapi"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source/ldapdir"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source/snapshot"
)

// NewSource 根据配置创建数据源：默认 provider 加上按查询类型的路由，外层统一限流
// 返回的 cleanup 关闭所有连接
func NewSource(cfg *config.Config) (source.Source, func(), error) {
	built := make(map[string]source.Source)
	var ldapClients []*ldapdir.Client

	build := func(provider string) (source.Source, error) {
		if src, ok := built[provider]; ok {
			return src, nil
		}
		var src source.Source
		switch provider {
		case "ldap":
			if cfg.Source.LDAP.URL == "" {
				return nil, fmt.Errorf("ldap url is missing")
			}
			c := ldapdir.NewClient(cfg.Source.LDAP)
			ldapClients = append(ldapClients, c)
			src = c

		case "snapshot":
			if cfg.Source.Snapshot.Path == "" {
				return nil, fmt.Errorf("snapshot path is missing")
			}
			c, err := snapshot.Load(cfg.Source.Snapshot.Path)
			if err != nil {
				return nil, err
			}
			src = c

		case "http":
			if cfg.Source.HTTP.BaseURL == "" {
				return nil, fmt.Errorf("http base url is missing")
			}
			src = httpapi.NewClient(cfg.Source.HTTP.BaseURL, cfg.Source.HTTP.Token, cfg.Source.HTTP.Timeout)

		default:
			return nil, fmt.Errorf("unknown source provider: %s", provider)
		}
		built[provider] = src
		return src, nil
	}

	cleanup := func() {
		for _, c := range ldapClients {
			c.Close()
		}
	}

	fallback, err := build(cfg.Source.Provider)
	if err != nil {
		return nil, nil, err
	}

	known := make(map[source.Kind]bool, len(source.Kinds))
	for _, k := range source.Kinds {
		known[k] = true
	}

	kinds := make([]string, 0, len(cfg.Source.Routes))
	for k := range cfg.Source.Routes {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	routes := make(map[source.Kind]source.Source, len(kinds))
	for _, k := range kinds {
		kind := source.Kind(k)
		if !known[kind] {
			cleanup()
			return nil, nil, fmt.Errorf("unknown query kind in routes: %s", k)
		}
		src, err := build(cfg.Source.Routes[k])
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("route %s: %w", k, err)
		}
		routes[kind] = src
		logger.Log.Infof("查询类型 %s 使用数据源 %s", k, cfg.Source.Routes[k])
	}

	var src source.Source = fallback
	if len(routes) > 0 {
		src = source.NewRouter(fallback, routes)
	}

	limiter := source.NewLimiter(cfg.Concurrency.QPS, cfg.Concurrency.RPM)
	if limiter != nil {
		logger.Log.Infof("限流器已配置: Limit=%.2f req/s, Burst=%d", float64(limiter.Limit()), limiter.Burst())
	}
	return source.Limited(src, limiter), cleanup, nil
}
