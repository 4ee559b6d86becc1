package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// 迁移记录表，与 gorm 管理的业务表分开
const migrationsTable = "checkin_schema_migrations"

// RunMigrations 将嵌入的迁移脚本应用到最新版本
//
// 打卡安排的部分唯一索引只存在于迁移脚本中，因此服务启动前必须迁移成功；
// 上次迁移中断留下 dirty 标记时直接返回错误，需人工修复后 force 到正确版本
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	from, err := currentVersion(m)
	if err != nil {
		return err
	}

	var dirty migrate.ErrDirty
	switch err := m.Up(); {
	case errors.As(err, &dirty):
		return fmt.Errorf("迁移版本 %d 处于 dirty 状态，需人工修复后执行 migrate force: %w", dirty.Version, err)
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("数据库结构已是最新", zap.Uint("version", from))
		return nil
	case err != nil:
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	to, err := currentVersion(m)
	if err != nil {
		return err
	}
	logger.Info("数据库迁移完成", zap.Uint("from", from), zap.Uint("to", to))
	return nil
}

// currentVersion 空库返回 0
func currentVersion(m *migrate.Migrate) (uint, error) {
	version, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取迁移版本失败: %w", err)
	}
	return version, nil
}
