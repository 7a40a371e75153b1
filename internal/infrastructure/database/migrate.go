package database

import (
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-moderation/migrations"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrate 使用内嵌脚本把数据库升级到最新版本。
// 处于 dirty 状态时回退到上一个版本后重试，与手工 `migrate force` 等价。
func Migrate(dsn string, logger log.Logger) error {
	helper := log.NewHelper(logger)

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		helper.Warnf("database: migration version %d is dirty, forcing to %d", version, int(version)-1)
		if err := m.Force(int(version) - 1); err != nil {
			return fmt.Errorf("force migration version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	after, _, _ := m.Version()
	helper.Infof("database: migrations applied, version=%d", after)
	return nil
}
