package s3store

import "github.com/google/wire"

// ProviderSet 暴露 S3 客户端与暂存器。
var ProviderSet = wire.NewSet(NewClient, NewStager)
