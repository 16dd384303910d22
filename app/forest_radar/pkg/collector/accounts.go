package collector

import (
	"context"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/health"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

var serviceAccountTypes = map[string]string{
	"msDS-GroupManagedServiceAccount": "gMSA",
	"msDS-ManagedServiceAccount":      "sMSA",
	"user":                            "User (SPN)",
}

// serviceAccountType 未知的对象类型原样返回
func serviceAccountType(class string) string {
	if t, ok := serviceAccountTypes[class]; ok {
		return t
	}
	return class
}

func collectServiceAccounts(ctx context.Context, env *Env) (Result, error) {
	rows, err := env.query(ctx, &source.Request{Kind: source.KindServiceAccounts})
	if err != nil {
		return Result{}, err
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		r := source.Read(row)
		a := model.ServiceAccount{
			Name:                  r.String(source.FieldName),
			SamAccountName:        r.String(source.FieldSamAccountName),
			AccountType:           serviceAccountType(r.String(source.FieldObjectClass)),
			Enabled:               health.Flag(r.Bool(source.FieldEnabled)),
			PasswordLastSet:       r.Time(source.FieldPasswordLastSet),
			LastLogon:             r.Time(source.FieldLastLogon),
			ServicePrincipalNames: r.Strings(source.FieldServicePrincipalNames),
			Description:           r.String(source.FieldDescription),
		}
		if err := r.Err(); err != nil {
			return Result{}, err
		}
		records = append(records, a)
	}
	return Result{Records: records}, nil
}
