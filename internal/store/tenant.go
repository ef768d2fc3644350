package store

import (
	"context"
	"reflect"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// ErrUnscopedTenantQuery is added to any statement on a tenant-owned table
// issued without a tenant scope or an explicit bypass.
var ErrUnscopedTenantQuery = apperr.New(apperr.KindInternal, apperr.CodeUnscopedQuery,
	"query on a clinic-owned table without a tenant scope")

var errClinicMismatch = apperr.Forbidden("record belongs to another clinic")

// scope is carried in the statement context. It is only built by this
// package.
type scope struct {
	clinicID   uuid.UUID
	allTenants bool
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) (scope, bool) {
	if ctx == nil {
		return scope{}, false
	}
	s, ok := ctx.Value(scopeKey{}).(scope)
	return s, ok
}

var tenantOwnedType = reflect.TypeOf((*models.TenantOwned)(nil)).Elem()

func isTenantOwned(s *schema.Schema) bool {
	if s == nil {
		return false
	}
	return reflect.PointerTo(s.ModelType).Implements(tenantOwnedType)
}

// TenantGuard is a gorm plugin that adds clinic_id = ? to every query, update
// and delete on tenant-owned tables and stamps ClinicID on create.
type TenantGuard struct{}

func (TenantGuard) Name() string { return "tenant_guard" }

func (g TenantGuard) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("tenant:query", g.filter); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenant:row", g.filter); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant:update", g.filter); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("tenant:delete", g.filter); err != nil {
		return err
	}
	return cb.Create().Before("gorm:create").Register("tenant:create", g.stamp)
}

func (TenantGuard) filter(db *gorm.DB) {
	if db.Error != nil || !isTenantOwned(db.Statement.Schema) {
		return
	}
	s, ok := scopeFrom(db.Statement.Context)
	if !ok {
		_ = db.AddError(ErrUnscopedTenantQuery)
		return
	}
	if s.allTenants {
		return
	}
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "clinic_id"}, Value: s.clinicID},
	}})
}

func (TenantGuard) stamp(db *gorm.DB) {
	if db.Error != nil || !isTenantOwned(db.Statement.Schema) {
		return
	}
	s, ok := scopeFrom(db.Statement.Context)
	if !ok {
		_ = db.AddError(ErrUnscopedTenantQuery)
		return
	}
	if s.allTenants {
		return
	}
	field := db.Statement.Schema.LookUpField("ClinicID")
	if field == nil {
		return
	}
	ctx := db.Statement.Context
	check := func(rv reflect.Value) {
		v, zero := field.ValueOf(ctx, rv)
		if zero {
			if err := field.Set(ctx, rv, s.clinicID); err != nil {
				_ = db.AddError(err)
			}
			return
		}
		if id, ok := v.(uuid.UUID); ok && id != s.clinicID {
			_ = db.AddError(errClinicMismatch)
		}
	}
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			check(reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		check(rv)
	}
}

// DB hands out gorm sessions. Every session on a tenant-owned table must come
// from Tenant, ForClinic or System; anything else fails with
// ErrUnscopedTenantQuery.
type DB struct {
	gorm *gorm.DB
}

// Shared returns a session for tables that are not clinic-owned (clinics,
// users, refresh tokens, the chronic disease catalogue).
func (d *DB) Shared(ctx context.Context) *gorm.DB {
	return d.gorm.WithContext(ctx)
}

// Tenant starts a query filtered to the clinic of the principal in ctx.
func (d *DB) Tenant(ctx context.Context) *Query {
	p, _ := domain.PrincipalFrom(ctx)
	return &Query{db: d, ctx: ctx, principal: p}
}

// ForClinic scopes a session to clinicID for flows that act for a clinic
// before a principal exists: onboarding, invitation acceptance and per-clinic
// jobs.
func (d *DB) ForClinic(ctx context.Context, clinicID uuid.UUID) *gorm.DB {
	return d.gorm.WithContext(context.WithValue(ctx, scopeKey{}, scope{clinicID: clinicID}))
}

// System returns a session with no tenant filter. It is reserved for system
// work over whole tables such as sequence numbers and background sweeps.
func (d *DB) System(ctx context.Context) *gorm.DB {
	return d.gorm.WithContext(context.WithValue(ctx, scopeKey{}, scope{allTenants: true}))
}

// Query is a tenant-scoped query builder. The bypasses are explicit calls that
// check the principal's role.
type Query struct {
	db         *DB
	ctx        context.Context
	principal  domain.Principal
	deleted    bool
	allTenants bool
}

// IncludeDeleted lifts the soft-delete filter. Clinic owners and super admins
// only.
func (q *Query) IncludeDeleted() (*Query, error) {
	if !q.principal.HasRole(domain.RoleClinicOwner, domain.RoleSuperAdmin) {
		return nil, apperr.Forbidden("including deleted records requires the clinic owner role")
	}
	cp := *q
	cp.deleted = true
	return &cp, nil
}

// IncludeAllTenants lifts the tenant filter. Super admins only.
func (q *Query) IncludeAllTenants() (*Query, error) {
	if !q.principal.HasRole(domain.RoleSuperAdmin) {
		return nil, apperr.Forbidden("cross-clinic queries require the super admin role")
	}
	cp := *q
	cp.allTenants = true
	return &cp, nil
}

// DB returns the gorm session. Without a clinic in the principal and without
// IncludeAllTenants, statements on tenant-owned tables fail.
func (q *Query) DB() *gorm.DB {
	ctx := q.ctx
	switch {
	case q.allTenants:
		ctx = context.WithValue(ctx, scopeKey{}, scope{allTenants: true})
	case q.principal.HasClinic():
		ctx = context.WithValue(ctx, scopeKey{}, scope{clinicID: q.principal.ClinicID})
	}
	tx := q.db.gorm.WithContext(ctx)
	if q.deleted {
		tx = tx.Unscoped().Session(&gorm.Session{})
	}
	return tx
}

// Transaction runs fn in a transaction on the scoped session.
func (q *Query) Transaction(fn func(tx *gorm.DB) error) error {
	return q.DB().Transaction(fn)
}
