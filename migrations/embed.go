// Package migrations 内嵌数据库迁移脚本，供启动迁移与集成测试复用。
package migrations

import "embed"

// FS 包含 golang-migrate 格式的 *.up.sql / *.down.sql。
//
//go:embed *.sql
var FS embed.FS
