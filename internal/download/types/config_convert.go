package types

import "multi_downloader/internal/config"

// ConvertRuntimeConfig converts the app-level Settings to the engine-level RuntimeConfig.
func ConvertRuntimeConfig(s *config.Settings) *RuntimeConfig {
	if s == nil {
		return &RuntimeConfig{}
	}
	delay := s.Download.RetryDelay
	if delay == 0 {
		// Zero in settings means "no pause"; the engine uses negative for that.
		delay = -1
	}
	return &RuntimeConfig{
		MaxAttempts:           s.Download.MaxAttempts,
		RetryDelay:            delay,
		Workers:               s.Download.Workers,
		Timeout:               s.Network.Timeout,
		ChunkSize:             s.Download.ChunkSize,
		UserAgent:             s.Network.UserAgent,
		ProxyURL:              s.Network.ProxyURL,
		ProtocolPreference:    s.Network.Protocol,
		MaxConnectionsPerHost: s.Network.MaxConnectionsPerHost,
	}
}
