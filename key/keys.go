// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Logging Infrastructure - these keys manage the application's internal diagnostics.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these settings govern the non-TUI application behavior.
const (
	CliColored = "cli.colored"
)

// Iconography - these keys manage the visual rendering of UI symbols.
const (
	IconsVariant = "icons.variant"
)

// Buffering Policy - thresholds consulted by the default load control, in milliseconds unless noted.
const (
	BufferMinMs                        = "buffer.min_ms"
	BufferMaxMs                        = "buffer.max_ms"
	BufferPlaybackMs                   = "buffer.playback_ms"
	BufferRebufferMs                   = "buffer.rebuffer_ms"
	BufferBackBufferMs                 = "buffer.back_buffer_ms"
	BufferRetainBackBufferFromKeyframe = "buffer.retain_back_buffer_from_keyframe"
	BufferTargetBytes                  = "buffer.target_bytes"
	BufferPrioritizeTime               = "buffer.prioritize_time"
)

// Loading - these keys configure the retryable loader.
const (
	LoaderMinRetryCount = "loader.min_retry_count"
)

// Engine - these keys size the channels between the caller and the playback loop.
const (
	EngineCommandBuffer = "engine.command_buffer"
	EngineEventBuffer   = "engine.event_buffer"
)

// Playback - initial player state applied by the CLI.
const (
	PlayerPlayWhenReady = "player.play_when_ready"
	PlayerRepeatMode    = "player.repeat_mode"
	PlayerShuffle       = "player.shuffle"
)

// History Tracking - these keys configure the persistence of resume positions.
const (
	HistorySavePositions = "history.save_positions"
)

// Observability - metrics and the status server.
const (
	MetricsEnabled = "metrics.enabled"
	ServerAddr     = "server.addr"
)

// Scripting - Lua timeline scripts.
const (
	ScriptsCacheBytecode = "scripts.cache_bytecode"
)
