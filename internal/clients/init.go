package clients

import "github.com/google/wire"

// ProviderSet 暴露外部服务客户端。
var ProviderSet = wire.NewSet(NewRekognitionClient)
