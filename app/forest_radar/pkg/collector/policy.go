package collector

import (
	"context"
	"strings"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/health"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

func collectPolicyObjects(ctx context.Context, env *Env) (Result, error) {
	rows, err := env.query(ctx, &source.Request{Kind: source.KindGPOs})
	if err != nil {
		return Result{}, err
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		r := source.Read(row)
		p := model.PolicyObject{
			DisplayName:      r.String(source.FieldDisplayName),
			ID:               r.String(source.FieldID),
			GpoStatus:        r.String(source.FieldGpoStatus),
			CreationTime:     r.Time(source.FieldCreationTime),
			ModificationTime: r.Time(source.FieldModificationTime),
		}
		if err := r.Err(); err != nil {
			return Result{}, err
		}
		p.Status = health.GPOStatus(p.GpoStatus)
		records = append(records, p)
	}
	return Result{Records: records}, nil
}

// fsmoRoles 五个操作主机角色及其作用范围
var fsmoRoles = []struct {
	role  string
	scope string
}{
	{"SchemaMaster", "Forest"},
	{"DomainNamingMaster", "Forest"},
	{"PDCEmulator", "Domain"},
	{"RIDMaster", "Domain"},
	{"InfrastructureMaster", "Domain"},
}

// collectFSMORoles 由域控记录汇总角色持有者，不再查询数据源。
// 林级角色在域控中找不到时使用林信息中的持有者。
func collectFSMORoles(_ context.Context, env *Env) (Result, error) {
	dcs, err := env.DomainControllers()
	if err != nil {
		return Result{}, err
	}
	if len(dcs) == 0 {
		return Result{Note: noDomainControllers}, nil
	}

	holders := make(map[string]string)
	for _, dc := range dcs {
		for _, role := range dc.FSMORoles {
			key := strings.ToLower(role)
			if _, ok := holders[key]; !ok {
				holders[key] = dc.HostName
			}
		}
	}
	if s, ok := env.Section(model.SectionForest); ok && len(s.Records) > 0 {
		if f, ok := s.Records[0].(model.Forest); ok {
			if holders["schemamaster"] == "" {
				holders["schemamaster"] = f.SchemaMaster
			}
			if holders["domainnamingmaster"] == "" {
				holders["domainnamingmaster"] = f.DomainNamingMaster
			}
		}
	}

	records := make([]model.Record, 0, len(fsmoRoles))
	for _, r := range fsmoRoles {
		records = append(records, model.FSMORole{
			Role:   r.role,
			Scope:  r.scope,
			Holder: health.RoleHolder(holders[strings.ToLower(r.role)]),
		})
	}
	return Result{Records: records}, nil
}
