package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/types"
	"github.com/chartdeck/chartdeck-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "chartdeck", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrate(s.db); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		name string
		ddl  string
	}{
		{
			name: "fk_card_bundle_id",
			ddl: `ALTER TABLE "card"
				ADD CONSTRAINT "fk_card_bundle_id"
				FOREIGN KEY ("bundle_id") REFERENCES "bundle_definition"("id")
				ON DELETE SET NULL`,
		},
		{
			name: "fk_card_metric_id",
			ddl: `ALTER TABLE "card"
				ADD CONSTRAINT "fk_card_metric_id"
				FOREIGN KEY ("metric_id") REFERENCES "metric_definition"("id")
				ON DELETE SET NULL`,
		},
		{
			name: "fk_card_snapshot_card_id",
			ddl: `ALTER TABLE "card_snapshot"
				ADD CONSTRAINT "fk_card_snapshot_card_id"
				FOREIGN KEY ("card_id") REFERENCES "card"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_card_relation_source_card_id",
			ddl: `ALTER TABLE "card_relation"
				ADD CONSTRAINT "fk_card_relation_source_card_id"
				FOREIGN KEY ("source_card_id") REFERENCES "card"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_card_relation_target_card_id",
			ddl: `ALTER TABLE "card_relation"
				ADD CONSTRAINT "fk_card_relation_target_card_id"
				FOREIGN KEY ("target_card_id") REFERENCES "card"("id")
				ON DELETE CASCADE`,
		},
	}
	for _, c := range constraints {
		var exists bool
		if err := s.db.Raw(
			`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`, c.name,
		).Scan(&exists).Error; err != nil {
			return fmt.Errorf("check constraint %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		if err := s.db.Exec(c.ddl).Error; err != nil {
			return fmt.Errorf("add constraint %s: %w", c.name, err)
		}
	}
	return nil
}

// AutoMigrate creates the core tables on any gorm dialect. Tests reuse it
// against in-memory sqlite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.BundleDefinition{},
		&types.MetricDefinition{},
		&types.Card{},
		&types.CardSnapshot{},
		&types.CardRelation{},
	)
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
