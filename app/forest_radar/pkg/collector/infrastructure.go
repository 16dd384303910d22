package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/health"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

// dnsServiceName 域控上检查的 DNS 服务名
const dnsServiceName = "DNS"

func collectForest(ctx context.Context, env *Env) (Result, error) {
	rows, err := env.query(ctx, &source.Request{Kind: source.KindForest})
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{}, nil
	}

	r := source.Read(rows[0])
	f := model.Forest{
		Name:               r.String(source.FieldName),
		ForestMode:         r.String(source.FieldForestMode),
		RootDomain:         r.String(source.FieldRootDomain),
		Domains:            r.Strings(source.FieldDomains),
		GlobalCatalogs:     r.Strings(source.FieldGlobalCatalogs),
		Sites:              r.Strings(source.FieldSites),
		UPNSuffixes:        r.Strings(source.FieldUPNSuffixes),
		SchemaMaster:       r.String(source.FieldSchemaMaster),
		DomainNamingMaster: r.String(source.FieldDomainNamingMaster),
	}
	if err := r.Err(); err != nil {
		return Result{}, err
	}
	return Result{Records: []model.Record{f}}, nil
}

func collectDomainControllers(ctx context.Context, env *Env) (Result, error) {
	rows, err := env.query(ctx, &source.Request{Kind: source.KindDomainControllers})
	if err != nil {
		return Result{}, err
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		r := source.Read(row)
		dc := model.DomainController{
			HostName:        r.String(source.FieldHostName),
			Site:            r.String(source.FieldSite),
			IPv4Address:     r.String(source.FieldIPv4Address),
			OperatingSystem: r.String(source.FieldOperatingSystem),
			OSVersion:       r.String(source.FieldOSVersion),
			IsGlobalCatalog: r.Bool(source.FieldIsGlobalCatalog),
			IsReadOnly:      r.Bool(source.FieldIsReadOnly),
			FSMORoles:       r.Strings(source.FieldOperationMasterRoles),
		}
		if err := r.Err(); err != nil {
			return Result{}, err
		}

		state, stateErr := serviceState(ctx, env, dc.HostName, dnsServiceName)
		dc.DNSService = health.ServiceState(state, stateErr)
		dc.DNSServiceStatus = dc.DNSService.Value
		dc.GlobalCatalog = health.Flag(dc.IsGlobalCatalog)
		records = append(records, dc)
	}
	return Result{Records: records}, nil
}

// serviceState 查询服务状态，查询失败时返回错误由分类器标记为 Critical
func serviceState(ctx context.Context, env *Env, host, service string) (string, error) {
	rows, err := env.query(ctx, &source.Request{Kind: source.KindServiceState, Target: host, Name: service})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	r := source.Read(rows[0])
	state := r.String(source.FieldStatus)
	return state, r.Err()
}

func collectReplication(ctx context.Context, env *Env) (Result, error) {
	dcs, err := env.DomainControllers()
	if err != nil {
		return Result{}, err
	}
	if len(dcs) == 0 {
		return Result{Note: noDomainControllers}, nil
	}

	var (
		records []model.Record
		missing notes
		errs    []error
	)
	for _, dc := range dcs {
		rows, err := env.query(ctx, &source.Request{Kind: source.KindReplication, Target: dc.HostName})
		if err != nil {
			missing.addf("replication metadata unavailable for %s: %v", dc.HostName, err)
			errs = append(errs, fmt.Errorf("%s: %w", dc.HostName, err))
			continue
		}
		for _, row := range rows {
			r := source.Read(row)
			link := model.ReplicationLink{
				Server:              dc.HostName,
				Partner:             r.String(source.FieldPartner),
				Partition:           r.String(source.FieldPartition),
				LastAttempt:         r.Time(source.FieldLastAttempt),
				LastSuccess:         r.Time(source.FieldLastSuccess),
				ConsecutiveFailures: r.Int(source.FieldConsecutiveFailures),
				LastResult:          r.String(source.FieldLastResult),
			}
			if err := r.Err(); err != nil {
				return Result{}, fmt.Errorf("%s: %w", dc.HostName, err)
			}
			link.Currency = health.ReplicationCurrency(link.LastSuccess, env.Now)
			link.Failures = health.ReplicationFailures(link.ConsecutiveFailures)
			records = append(records, link)
		}
	}

	// 所有域控都读不到时整节失败
	if len(errs) == len(dcs) {
		return Result{}, errors.Join(errs...)
	}
	return Result{Records: records, Note: missing.String(), Partial: len(missing) > 0}, nil
}

func collectSites(ctx context.Context, env *Env) (Result, error) {
	rows, err := env.query(ctx, &source.Request{Kind: source.KindSites})
	if err != nil {
		return Result{}, err
	}

	var note notes
	dcs, dcErr := env.DomainControllers()
	if dcErr != nil {
		note.addf("domain controller placement unavailable: %v", dcErr)
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		r := source.Read(row)
		site := model.Site{
			Name:        r.String(source.FieldName),
			Description: r.String(source.FieldDescription),
			Location:    r.String(source.FieldLocation),
			Subnets:     r.Strings(source.FieldSubnets),
		}
		if err := r.Err(); err != nil {
			return Result{}, err
		}
		for _, dc := range dcs {
			if strings.EqualFold(dc.Site, site.Name) {
				site.DomainControllers = append(site.DomainControllers, dc.HostName)
			}
		}
		records = append(records, site)
	}
	return Result{Records: records, Note: note.String(), Partial: len(note) > 0}, nil
}

// collectDNSZones 依次尝试每台域控，使用第一台应答的结果
func collectDNSZones(ctx context.Context, env *Env) (Result, error) {
	dcs, err := env.DomainControllers()
	if err != nil {
		return Result{}, err
	}
	if len(dcs) == 0 {
		return Result{Note: noDomainControllers}, nil
	}

	var errs []error
	for _, dc := range dcs {
		rows, err := env.query(ctx, &source.Request{Kind: source.KindDNSZones, Target: dc.HostName})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dc.HostName, err))
			continue
		}

		records := make([]model.Record, 0, len(rows))
		for _, row := range rows {
			r := source.Read(row)
			zone := model.DNSZone{
				Server:        dc.HostName,
				ZoneName:      r.String(source.FieldZoneName),
				ZoneType:      r.String(source.FieldZoneType),
				DsIntegrated:  r.Bool(source.FieldDsIntegrated),
				ReverseLookup: r.Bool(source.FieldReverseLookup),
				DynamicUpdate: r.String(source.FieldDynamicUpdate),
			}
			if err := r.Err(); err != nil {
				return Result{}, fmt.Errorf("%s: %w", dc.HostName, err)
			}
			records = append(records, zone)
		}
		return Result{Records: records}, nil
	}
	return Result{}, fmt.Errorf("no domain controller answered DNS zone queries: %w", errors.Join(errs...))
}

// errNoDHCPServers 目录中没有授权的 DHCP 服务器，视为该能力不存在
var errNoDHCPServers = errors.New("no DHCP servers are authorized in the directory")

func collectDHCPScopes(ctx context.Context, env *Env) (Result, error) {
	servers, err := env.query(ctx, &source.Request{Kind: source.KindDHCPServers})
	if err != nil {
		return Result{}, err
	}
	if len(servers) == 0 {
		return Result{}, errNoDHCPServers
	}

	var (
		records []model.Record
		missing notes
		errs    []error
	)
	for _, s := range servers {
		sr := source.Read(s)
		server := sr.String(source.FieldDNSName)
		if err := sr.Err(); err != nil {
			return Result{}, err
		}

		rows, err := env.query(ctx, &source.Request{Kind: source.KindDHCPScopes, Target: server})
		if err != nil {
			missing.addf("scopes unavailable for %s: %v", server, err)
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}
		for _, row := range rows {
			r := source.Read(row)
			scope := model.DHCPScope{
				Server:        server,
				ScopeID:       r.String(source.FieldScopeID),
				Name:          r.String(source.FieldName),
				SubnetMask:    r.String(source.FieldSubnetMask),
				StartRange:    r.String(source.FieldStartRange),
				EndRange:      r.String(source.FieldEndRange),
				LeaseDuration: r.String(source.FieldLeaseDuration),
				State:         r.String(source.FieldState),
			}
			if err := r.Err(); err != nil {
				return Result{}, fmt.Errorf("%s: %w", server, err)
			}
			scope.StateStatus = health.DHCPScopeState(scope.State)
			records = append(records, scope)
		}
	}

	if len(errs) == len(servers) {
		return Result{}, errors.Join(errs...)
	}
	return Result{Records: records, Note: missing.String(), Partial: len(missing) > 0}, nil
}
