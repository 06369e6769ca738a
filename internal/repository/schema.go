package repository

// Schema definitions for the Onroad database.
// Compatible with both SQLite and PostgreSQL.

const schemaRegistrationRules = `
CREATE TABLE IF NOT EXISTS registration_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    state_code TEXT NOT NULL,
    vehicle_type TEXT,
    components TEXT NOT NULL,
    state_tenure INTEGER NOT NULL DEFAULT 15,
    bh_tenure INTEGER NOT NULL DEFAULT 2,
    company_multiplier REAL NOT NULL DEFAULT 2.0,
    version INTEGER NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_registration_rules_tenant ON registration_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_registration_rules_state ON registration_rules(tenant_id, state_code, enabled);
`

const schemaInsuranceRules = `
CREATE TABLE IF NOT EXISTS insurance_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    state_code TEXT NOT NULL,
    insurer_name TEXT NOT NULL,
    idv_percentage REAL NOT NULL DEFAULT 95.0,
    gst_percentage REAL NOT NULL DEFAULT 18.0,
    od_components TEXT NOT NULL,
    tp_components TEXT NOT NULL,
    addons TEXT NOT NULL,
    version INTEGER NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_insurance_rules_tenant ON insurance_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_insurance_rules_state ON insurance_rules(tenant_id, state_code, enabled);
`

// schemaPriceSnapshots defines the append-only snapshot audit trail.
// Snapshots are immutable once written; there is no update path.
const schemaPriceSnapshots = `
CREATE TABLE IF NOT EXISTS price_snapshots (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    lead_id TEXT,
    state_code TEXT NOT NULL,
    rto_code TEXT,
    ex_showroom REAL NOT NULL,
    rto_charges REAL NOT NULL,
    rto_breakdown TEXT,
    insurance_base REAL NOT NULL DEFAULT 0,
    insurance_addons TEXT,
    accessory_bundle TEXT,
    total_on_road REAL NOT NULL,
    hsn_code TEXT,
    gst_rate REAL NOT NULL DEFAULT 0,
    cess_rate REAL NOT NULL DEFAULT 0,
    registration_type TEXT NOT NULL,
    rule_version INTEGER NOT NULL DEFAULT 0,
    insurance_version INTEGER NOT NULL DEFAULT 0,
    calculated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_snapshots_tenant ON price_snapshots(tenant_id);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_lead ON price_snapshots(tenant_id, lead_id);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_product ON price_snapshots(tenant_id, product_id);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_calculated ON price_snapshots(tenant_id, calculated_at);
`

const schemaOfferRules = `
CREATE TABLE IF NOT EXISTS offer_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    amount REAL NOT NULL DEFAULT 0,
    max_discount REAL NOT NULL DEFAULT 0,
    stackable INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_offer_rules_tenant ON offer_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_offer_rules_enabled ON offer_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRegistrationRules,
		schemaInsuranceRules,
		schemaPriceSnapshots,
		schemaOfferRules,
	}
}
