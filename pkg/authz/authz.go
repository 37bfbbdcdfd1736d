package authz

import (
	"strconv"

	"engagement-controlplane/pkg/config"
	"engagement-controlplane/services/marketplace"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const RoleAdmin = "admin"

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

var Module = fx.Module("authz",
	fx.Provide(
		New,
		func(e *Enforcer) marketplace.Authorizer { return e },
	),
)

// Enforcer answers administrator checks with a casbin policy keyed by actor id.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// New loads the model and policy files when configured. Otherwise the built-in
// model grants every action to the configured administrator.
func New(c *config.Config) (*Enforcer, error) {
	if c.AccessControl.Model != "" && c.AccessControl.Policy != "" {
		e, err := casbin.NewSyncedEnforcer(c.AccessControl.Model, c.AccessControl.Policy)
		if err != nil {
			zap.L().Error("[Authz] failed to load access control policy", zap.Error(err))
			return nil, err
		}
		return &Enforcer{enforcer: e}, nil
	}
	return NewDefault(c.Marketplace.AdminID)
}

func NewDefault(adminID int64) (*Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if _, err := e.AddPolicy(RoleAdmin, "*", "*"); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicy(Subject(adminID), RoleAdmin); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: e}, nil
}

func Subject(actor int64) string {
	return strconv.FormatInt(actor, 10)
}

func (e *Enforcer) Authorize(actor int64, resource, action string) bool {
	if actor == 0 {
		return false
	}
	ok, err := e.enforcer.Enforce(Subject(actor), resource, action)
	if err != nil {
		zap.L().Error("[Authz] enforce failed",
			zap.Int64("actor", actor),
			zap.String("resource", resource),
			zap.String("action", action),
			zap.Error(err),
		)
		return false
	}
	return ok
}
