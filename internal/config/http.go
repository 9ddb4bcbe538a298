package config

import "time"

// HTTPConfig bounds request handling and shutdown.
type HTTPConfig struct {
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	// ShutdownTimeout covers the whole drain: HTTP, pending writes, the archive and the bridge.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (h *HTTPConfig) normalize() {
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = defaultReadTimeout
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = defaultWriteTimeout
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = defaultIdleTimeout
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = defaultShutdownTimeout
	}
}
