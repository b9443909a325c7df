// Package config loads the server configuration from the `server:` section
// of config.yaml.
//
// Config fields:
//   - HTTPPort         — port for the REST API and WebSocket hub (default 4000)
//   - Auth.Mode        — "apikey" or "none"
//   - Auth.KeyEnv      — environment variable holding the expected API key
//   - Auth.Header      — HTTP header name (default "x-api-key")
//   - Store.Path       — SQLite database file (default "users.db")
//   - Cache.TTL        — freshness window of the collection cache (default 1h)
//   - Cache.Timeout    — per-operation cache deadline (default 2s)
//   - Uploads.Dir      — directory for derived images (default "uploads")
//   - Push.*           — VAPID key env names, contact subject, fan-out timeout,
//     and the prune_failed policy for permanently-gone subscribers
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) hot-reloads the file on write.
package config
