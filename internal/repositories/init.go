package repositories

import "github.com/google/wire"

// ProviderSet 暴露仓储构造器。
var ProviderSet = wire.NewSet(NewVideoRepository)
