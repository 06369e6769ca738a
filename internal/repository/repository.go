// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dealerstack/onroad/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRegistrationRule stores a registration rule version with tenant
// isolation. Re-saving the same (id, version) updates the row; bumping
// the version leaves prior versions untouched for snapshot replay.
func (r *SQLRepository) SaveRegistrationRule(ctx context.Context, tenantID string, rule *domain.RegistrationRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	components, _ := json.Marshal(rule.Components)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO registration_rules (
			id, tenant_id, state_code, vehicle_type, components,
			state_tenure, bh_tenure, company_multiplier,
			version, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			state_code = excluded.state_code,
			vehicle_type = excluded.vehicle_type,
			components = excluded.components,
			state_tenure = excluded.state_tenure,
			bh_tenure = excluded.bh_tenure,
			company_multiplier = excluded.company_multiplier,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.StateCode, rule.VehicleType, string(components),
		rule.StateTenure, rule.BHTenure, rule.CompanyMultiplier,
		rule.Version, enabled, now, now,
	)
	return err
}

// GetRegistrationRule retrieves the highest enabled rule version for a
// state with tenant isolation.
func (r *SQLRepository) GetRegistrationRule(ctx context.Context, tenantID string, stateCode string) (*domain.RegistrationRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, state_code, vehicle_type, components,
			   state_tenure, bh_tenure, company_multiplier, version, enabled
		FROM registration_rules
		WHERE tenant_id = ? AND state_code = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, stateCode)
	return scanRegistrationRule(row)
}

// ListRegistrationRules retrieves all active registration rules for a tenant.
func (r *SQLRepository) ListRegistrationRules(ctx context.Context, tenantID string) ([]*domain.RegistrationRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, state_code, vehicle_type, components,
			   state_tenure, bh_tenure, company_multiplier, version, enabled
		FROM registration_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY state_code, version DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RegistrationRule
	for rows.Next() {
		rule, err := scanRegistrationRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRegistrationRule(s scanner) (*domain.RegistrationRule, error) {
	var rule domain.RegistrationRule
	var components string
	var enabled int

	err := s.Scan(
		&rule.ID, &rule.TenantID, &rule.StateCode, &rule.VehicleType, &components,
		&rule.StateTenure, &rule.BHTenure, &rule.CompanyMultiplier,
		&rule.Version, &enabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(components), &rule.Components); err != nil {
		return nil, fmt.Errorf("failed to parse rule components: %w", err)
	}

	return &rule, nil
}

// SaveInsuranceRule stores an insurance rule version with tenant isolation.
func (r *SQLRepository) SaveInsuranceRule(ctx context.Context, tenantID string, rule *domain.InsuranceRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	od, _ := json.Marshal(rule.ODComponents)
	tp, _ := json.Marshal(rule.TPComponents)
	addons, _ := json.Marshal(rule.Addons)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO insurance_rules (
			id, tenant_id, state_code, insurer_name,
			idv_percentage, gst_percentage,
			od_components, tp_components, addons,
			version, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			state_code = excluded.state_code,
			insurer_name = excluded.insurer_name,
			idv_percentage = excluded.idv_percentage,
			gst_percentage = excluded.gst_percentage,
			od_components = excluded.od_components,
			tp_components = excluded.tp_components,
			addons = excluded.addons,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.StateCode, rule.InsurerName,
		rule.IDVPercentage, rule.GSTPercentage,
		string(od), string(tp), string(addons),
		rule.Version, enabled, now, now,
	)
	return err
}

const insuranceRuleColumns = `
	SELECT id, tenant_id, state_code, insurer_name,
		   idv_percentage, gst_percentage,
		   od_components, tp_components, addons, version, enabled
	FROM insurance_rules
`

// GetInsuranceRule retrieves the highest enabled insurance rule version
// for a state with tenant isolation.
func (r *SQLRepository) GetInsuranceRule(ctx context.Context, tenantID string, stateCode string) (*domain.InsuranceRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := insuranceRuleColumns + `
		WHERE tenant_id = ? AND state_code = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, stateCode)
	return scanInsuranceRule(row)
}

// GetInsuranceRuleByID retrieves the highest enabled version of a
// specific insurance rule with tenant isolation.
func (r *SQLRepository) GetInsuranceRuleByID(ctx context.Context, tenantID string, ruleID string) (*domain.InsuranceRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := insuranceRuleColumns + `
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID)
	return scanInsuranceRule(row)
}

// ListInsuranceRules retrieves all active insurance rules for a tenant.
func (r *SQLRepository) ListInsuranceRules(ctx context.Context, tenantID string) ([]*domain.InsuranceRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := insuranceRuleColumns + `
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY state_code, insurer_name, version DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.InsuranceRule
	for rows.Next() {
		rule, err := scanInsuranceRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanInsuranceRule(s scanner) (*domain.InsuranceRule, error) {
	var rule domain.InsuranceRule
	var od, tp, addons string
	var enabled int

	err := s.Scan(
		&rule.ID, &rule.TenantID, &rule.StateCode, &rule.InsurerName,
		&rule.IDVPercentage, &rule.GSTPercentage,
		&od, &tp, &addons, &rule.Version, &enabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	json.Unmarshal([]byte(od), &rule.ODComponents)
	json.Unmarshal([]byte(tp), &rule.TPComponents)
	json.Unmarshal([]byte(addons), &rule.Addons)

	return &rule, nil
}

// SaveSnapshot stores a price snapshot with tenant isolation. Snapshots
// are append-only; there is no conflict clause on purpose.
func (r *SQLRepository) SaveSnapshot(ctx context.Context, tenantID string, snap *domain.PriceSnapshot) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	rtoBreakdown, _ := json.Marshal(snap.RTOBreakdown)
	insuranceAddons, _ := json.Marshal(snap.InsuranceAddons)
	accessories, _ := json.Marshal(snap.AccessoryBundle)

	query := `
		INSERT INTO price_snapshots (
			id, tenant_id, product_id, lead_id, state_code, rto_code,
			ex_showroom, rto_charges, rto_breakdown,
			insurance_base, insurance_addons, accessory_bundle,
			total_on_road, hsn_code, gst_rate, cess_rate,
			registration_type, rule_version, insurance_version, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		snap.ID, tenantID, snap.ProductID, snap.LeadID, snap.StateCode, snap.RTOCode,
		snap.ExShowroom, snap.RTOCharges, string(rtoBreakdown),
		snap.InsuranceBase, string(insuranceAddons), string(accessories),
		snap.TotalOnRoad, snap.HSNCode, snap.GSTRate, snap.CessRate,
		string(snap.RegistrationType), snap.RuleVersion, snap.InsuranceVersion,
		snap.CalculatedAt,
	)
	return err
}

const snapshotColumns = `
	SELECT id, tenant_id, product_id, lead_id, state_code, rto_code,
		   ex_showroom, rto_charges, rto_breakdown,
		   insurance_base, insurance_addons, accessory_bundle,
		   total_on_road, hsn_code, gst_rate, cess_rate,
		   registration_type, rule_version, insurance_version, calculated_at
	FROM price_snapshots
`

// GetSnapshot retrieves a price snapshot by ID with tenant isolation.
func (r *SQLRepository) GetSnapshot(ctx context.Context, tenantID string, snapID string) (*domain.PriceSnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := snapshotColumns + `
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, snapID)
	return scanSnapshot(row)
}

// GetSnapshotsByLead retrieves a lead's snapshots since a point in time
// with tenant isolation, newest first.
func (r *SQLRepository) GetSnapshotsByLead(ctx context.Context, tenantID string, leadID string, since time.Time) ([]*domain.PriceSnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := snapshotColumns + `
		WHERE tenant_id = ?
		  AND lead_id = ?
		  AND calculated_at >= ?
		ORDER BY calculated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, leadID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*domain.PriceSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	return snaps, rows.Err()
}

func scanSnapshot(s scanner) (*domain.PriceSnapshot, error) {
	var snap domain.PriceSnapshot
	var rtoBreakdown, insuranceAddons, accessories string
	var regType string

	err := s.Scan(
		&snap.ID, &snap.TenantID, &snap.ProductID, &snap.LeadID, &snap.StateCode, &snap.RTOCode,
		&snap.ExShowroom, &snap.RTOCharges, &rtoBreakdown,
		&snap.InsuranceBase, &insuranceAddons, &accessories,
		&snap.TotalOnRoad, &snap.HSNCode, &snap.GSTRate, &snap.CessRate,
		&regType, &snap.RuleVersion, &snap.InsuranceVersion, &snap.CalculatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	snap.RegistrationType = domain.RegistrationType(regType)
	json.Unmarshal([]byte(rtoBreakdown), &snap.RTOBreakdown)
	json.Unmarshal([]byte(insuranceAddons), &snap.InsuranceAddons)
	json.Unmarshal([]byte(accessories), &snap.AccessoryBundle)

	return &snap, nil
}

// SaveOfferConfig stores an offer configuration with tenant isolation.
func (r *SQLRepository) SaveOfferConfig(ctx context.Context, tenantID string, offer *domain.OfferConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if offer.Enabled {
		enabled = 1
	}
	stackable := 0
	if offer.Stackable {
		stackable = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO offer_rules (
			id, tenant_id, name, description, version, expression,
			amount, max_discount, stackable, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			amount = excluded.amount,
			max_discount = excluded.max_discount,
			stackable = excluded.stackable,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		offer.ID, tenantID, offer.Name, offer.Description,
		offer.Version, offer.Expression,
		offer.Amount, offer.MaxDiscount, stackable, enabled,
		now, now,
	)
	return err
}

// GetOfferConfig retrieves an offer configuration with tenant isolation.
func (r *SQLRepository) GetOfferConfig(ctx context.Context, tenantID string, offerID string) (*domain.OfferConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression,
			   amount, max_discount, stackable, enabled
		FROM offer_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.OfferConfig
	var stackable, enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, offerID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression,
		&cfg.Amount, &cfg.MaxDiscount, &stackable, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Stackable = stackable == 1
	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListOfferConfigs retrieves all active offer configurations for a tenant.
func (r *SQLRepository) ListOfferConfigs(ctx context.Context, tenantID string) ([]*domain.OfferConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression,
			   amount, max_discount, stackable, enabled
		FROM offer_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.OfferConfig
	for rows.Next() {
		var cfg domain.OfferConfig
		var stackable, enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression,
			&cfg.Amount, &cfg.MaxDiscount, &stackable, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Stackable = stackable == 1
		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
