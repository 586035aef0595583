package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/wallforge/wallsim-backend/internal/types"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.WallConfigRecord{},
		&types.Wall{},
		&types.WallProfile{},
		&types.WallProfileProgress{},
		&types.BatchRun{},
	)
}

// EnsureCascades wires the foreign keys by hand so that deleting a wall
// config removes every derived row in one statement. AutoMigrate runs with
// FK creation disabled, matching how the tables are built in production.
func EnsureCascades(db *gorm.DB) error {
	stmts := []string{
		`ALTER TABLE wall
			DROP CONSTRAINT IF EXISTS fk_wall_wall_config,
			ADD CONSTRAINT fk_wall_wall_config
			FOREIGN KEY (wall_config_id) REFERENCES wall_config(id) ON DELETE CASCADE;`,
		`ALTER TABLE wall_profile
			DROP CONSTRAINT IF EXISTS fk_wall_profile_wall,
			ADD CONSTRAINT fk_wall_profile_wall
			FOREIGN KEY (wall_id) REFERENCES wall(id) ON DELETE CASCADE;`,
		`ALTER TABLE wall_profile_progress
			DROP CONSTRAINT IF EXISTS fk_wall_profile_progress_wall_profile,
			ADD CONSTRAINT fk_wall_profile_progress_wall_profile
			FOREIGN KEY (wall_profile_id) REFERENCES wall_profile(id) ON DELETE CASCADE;`,
		`ALTER TABLE batch_run
			DROP CONSTRAINT IF EXISTS fk_batch_run_wall_config,
			ADD CONSTRAINT fk_batch_run_wall_config
			FOREIGN KEY (wall_config_id) REFERENCES wall_config(id) ON DELETE CASCADE;`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure cascade: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureCascades(s.db); err != nil {
		s.log.Error("Cascade migration failed", "error", err)
		return err
	}
	return nil
}
