package configloader

import "github.com/google/wire"

// ProviderSet exposes configuration-derived dependencies for Wire graphs.
var ProviderSet = wire.NewSet(
	Build,
	ProvideBootstrap,
	ProvideServiceMetadata,
	ProvideServerConfig,
	ProvideDataConfig,
	ProvideStorageConfig,
	ProvidePublishConfig,
	ProvideModerationConfig,
	ProvideVectorConfig,
	ProvideEventsConfig,
	ProvideRealtimeConfig,
	ProvideObservabilityConfig,
)

// ProvideBootstrap exposes the strongly typed bootstrap configuration.
func ProvideBootstrap(b *Bundle) *Bootstrap {
	if b == nil {
		return nil
	}
	return b.Bootstrap
}

// ProvideServiceMetadata returns the resolved ServiceMetadata.
func ProvideServiceMetadata(b *Bundle) ServiceMetadata {
	if b == nil {
		return ServiceMetadata{}
	}
	return b.Service
}

// ProvideServerConfig returns the server section.
func ProvideServerConfig(bc *Bootstrap) *Server { return &bc.Server }

// ProvideDataConfig returns the data section.
func ProvideDataConfig(bc *Bootstrap) *Data { return &bc.Data }

// ProvideStorageConfig returns the storage section.
func ProvideStorageConfig(bc *Bootstrap) *Storage { return &bc.Storage }

// ProvidePublishConfig returns the publish section.
func ProvidePublishConfig(bc *Bootstrap) *Publish { return &bc.Publish }

// ProvideModerationConfig returns the moderation section.
func ProvideModerationConfig(bc *Bootstrap) *Moderation { return &bc.Moderation }

// ProvideVectorConfig returns the vector section.
func ProvideVectorConfig(bc *Bootstrap) *Vector { return &bc.Vector }

// ProvideEventsConfig returns the events section.
func ProvideEventsConfig(bc *Bootstrap) *Events { return &bc.Events }

// ProvideRealtimeConfig returns the realtime section.
func ProvideRealtimeConfig(bc *Bootstrap) *Realtime { return &bc.Realtime }

// ProvideObservabilityConfig returns the observability section.
func ProvideObservabilityConfig(bc *Bootstrap) *Observability { return &bc.Observability }
