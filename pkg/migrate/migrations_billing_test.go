package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parley-ai/parley-backend/pkg/migrate"
)

func TestBillingMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*_billing_core.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no billing core migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX uq_plans_slug ON plans (slug) WHERE slug <> 'custom'",
		"stripe_subscription_id TEXT NOT NULL UNIQUE",
		"CONSTRAINT uq_org_members_org_user UNIQUE (organization_id, user_id)",
		"CREATE INDEX idx_subscriptions_org_status ON subscriptions (organization_id, status)",
		"DROP TABLE subscriptions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir(filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("shipped migrations failed validation: %v", err)
	}
}
